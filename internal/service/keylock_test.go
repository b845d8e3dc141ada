package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLockGivesUpWhenContextEnds(t *testing.T) {
	locks := newKeyLock()
	unlock, err := locks.Lock(context.Background(), "contact-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "contact-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locks.size())

	// other keys are independent
	other, err := locks.Lock(context.Background(), "contact-2")
	require.NoError(t, err)
	other()

	unlock()
	assert.Zero(t, locks.size())

	again, err := locks.Lock(context.Background(), "contact-1")
	require.NoError(t, err)
	again()
}

func TestKeyLockHandsOverToWaiter(t *testing.T) {
	locks := newKeyLock()
	unlock, err := locks.Lock(context.Background(), "k")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		next, err := locks.Lock(context.Background(), "k")
		if err == nil {
			close(acquired)
			next()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}
