package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) LockRoomDate(ctx context.Context, roomID int64, date time.Time, lineItemID int64) error {
	args := m.Called(ctx, roomID, date, lineItemID)
	return args.Error(0)
}

func (m *MockLedger) ReleaseLineItem(ctx context.Context, lineItemID int64) (int64, error) {
	args := m.Called(ctx, lineItemID)
	return args.Get(0).(int64), args.Error(1)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLocker_LockEveryNightButCheckout(t *testing.T) {
	ctx := context.Background()
	w, err := domain.NewStayWindow(day("2024-09-20"), day("2024-09-23"))
	require.NoError(t, err)

	ledger := &MockLedger{}
	for _, d := range []string{"2024-09-20", "2024-09-21", "2024-09-22"} {
		ledger.On("LockRoomDate", ctx, int64(7), day(d), int64(42)).Return(nil).Once()
	}

	require.NoError(t, NewLocker().Lock(ctx, ledger, 7, w, 42))
	ledger.AssertExpectations(t)
	ledger.AssertNotCalled(t, "LockRoomDate", ctx, int64(7), day("2024-09-23"), int64(42))
}

func TestLocker_LockStopsOnConflict(t *testing.T) {
	ctx := context.Background()
	w, err := domain.NewStayWindow(day("2024-09-20"), day("2024-09-23"))
	require.NoError(t, err)

	ledger := &MockLedger{}
	ledger.On("LockRoomDate", ctx, int64(7), day("2024-09-20"), int64(42)).Return(nil).Once()
	ledger.On("LockRoomDate", ctx, int64(7), day("2024-09-21"), int64(42)).Return(repository.ErrInventoryConflict).Once()

	err = NewLocker().Lock(ctx, ledger, 7, w, 42)
	assert.ErrorIs(t, err, repository.ErrInventoryConflict)
	assert.Contains(t, err.Error(), "2024-09-21")
	ledger.AssertNotCalled(t, "LockRoomDate", ctx, int64(7), day("2024-09-22"), int64(42))
}

func TestLocker_Release(t *testing.T) {
	ctx := context.Background()
	ledger := &MockLedger{}
	ledger.On("ReleaseLineItem", ctx, int64(42)).Return(int64(3), nil).Once()

	n, err := NewLocker().Release(ctx, ledger, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	failing := &MockLedger{}
	failing.On("ReleaseLineItem", ctx, int64(42)).Return(int64(0), errors.New("tx aborted"))
	_, err = NewLocker().Release(ctx, failing, 42)
	assert.Error(t, err)
}
