package confirmation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) LatestConfirmationCode(ctx context.Context, prefix string) (string, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Error(1)
}

func (m *MockSource) IssueConfirmationSequence(ctx context.Context, dayPrefix string, floor int) (int, error) {
	args := m.Called(ctx, dayPrefix, floor)
	return args.Int(0), args.Error(1)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGenerator_Next(t *testing.T) {
	now := fixedClock(time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	testCases := []struct {
		name     string
		latest   string
		floor    int
		issued   int
		expected string
	}{
		{name: "first of the day", latest: "", floor: 1, issued: 1, expected: "RSV202409200001"},
		{name: "increments suffix", latest: "RSV202409200041", floor: 42, issued: 42, expected: "RSV202409200042"},
		{name: "crosses digit boundary", latest: "RSV202409200999", floor: 1000, issued: 1000, expected: "RSV202409201000"},
		{name: "ledger ahead of stored codes", latest: "RSV202409200001", floor: 2, issued: 3, expected: "RSV202409200003"},
		{name: "ledger ahead after all codes cancelled", latest: "", floor: 1, issued: 5, expected: "RSV202409200005"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &MockSource{}
			src.On("LatestConfirmationCode", ctx, "RSV20240920").Return(tc.latest, nil).Once()
			src.On("IssueConfirmationSequence", ctx, "RSV20240920", tc.floor).Return(tc.issued, nil).Once()

			code, err := NewGenerator("rsv", time.UTC, now).Next(ctx, src)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, code)
			src.AssertExpectations(t)
		})
	}
}

func TestGenerator_Exhausted(t *testing.T) {
	ctx := context.Background()
	src := &MockSource{}
	src.On("LatestConfirmationCode", ctx, "RSV20240920").Return("RSV202409209999", nil)
	src.On("IssueConfirmationSequence", ctx, "RSV20240920", 10000).Return(10000, nil)

	g := NewGenerator("RSV", time.UTC, fixedClock(time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC)))
	_, err := g.Next(ctx, src)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestGenerator_MalformedLatest(t *testing.T) {
	ctx := context.Background()
	src := &MockSource{}
	src.On("LatestConfirmationCode", ctx, "RSV20240920").Return("RSV20240920ABCD", nil)

	g := NewGenerator("RSV", time.UTC, fixedClock(time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC)))
	_, err := g.Next(ctx, src)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "malformed confirmation code")
	src.AssertNotCalled(t, "IssueConfirmationSequence", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_SourceError(t *testing.T) {
	ctx := context.Background()
	src := &MockSource{}
	src.On("LatestConfirmationCode", ctx, mock.Anything).Return("", errors.New("connection reset"))

	_, err := NewGenerator("RSV", nil, nil).Next(ctx, src)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGenerator_LedgerError(t *testing.T) {
	ctx := context.Background()
	src := &MockSource{}
	src.On("LatestConfirmationCode", ctx, mock.Anything).Return("", nil)
	src.On("IssueConfirmationSequence", ctx, mock.Anything, 1).Return(0, errors.New("deadlock detected"))

	_, err := NewGenerator("RSV", nil, nil).Next(ctx, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue confirmation sequence")
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestGenerator_UsesConfiguredTimezone(t *testing.T) {
	// 23:30 UTC on the 20th is already the 21st in UTC+3
	loc := time.FixedZone("UTC+3", 3*3600)
	g := NewGenerator("RSV", loc, fixedClock(time.Date(2024, 9, 20, 23, 30, 0, 0, time.UTC)))
	assert.Equal(t, "RSV20240921", g.DayPrefix())
}
