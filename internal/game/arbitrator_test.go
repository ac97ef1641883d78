package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
)

func testCharacter(id, name string) *models.Character {
	return &models.Character{ID: id, Name: name, Rarity: models.RarityCommon}
}

func TestArbitrator_Resolve(t *testing.T) {
	t.Run("no active spawn", func(t *testing.T) {
		a := NewArbitrator()
		_, err := a.Resolve(1, "rick")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("wrong guess leaves the spawn up", func(t *testing.T) {
		a := NewArbitrator()
		a.Install(1, testCharacter("c1", "Rick Sanchez"), time.Now())

		_, err := a.Resolve(1, "morty")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.NotNil(t, a.Active(1), "wrong guess does not consume the spawn")
	})

	t.Run("correct guess wins and closes the spawn", func(t *testing.T) {
		a := NewArbitrator()
		a.Install(1, testCharacter("c1", "Rick Sanchez"), time.Now())

		won, err := a.Resolve(1, "Rick")
		require.NoError(t, err)
		assert.Equal(t, "c1", won.ID)
		assert.Nil(t, a.Active(1), "won spawn is no longer active")

		_, err = a.Resolve(1, "rick")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err), "late guesser gets already guessed")
	})

	t.Run("invalid guess rejected before arbitration", func(t *testing.T) {
		a := NewArbitrator()
		a.Install(1, testCharacter("c1", "Rick Sanchez"), time.Now())

		_, err := a.Resolve(1, "  ")
		require.Error(t, err)
		assert.NotNil(t, a.Active(1))
	})

	t.Run("chats arbitrate independently", func(t *testing.T) {
		a := NewArbitrator()
		a.Install(1, testCharacter("c1", "Rick"), time.Now())
		a.Install(2, testCharacter("c2", "Morty"), time.Now())

		_, err := a.Resolve(1, "rick")
		require.NoError(t, err)

		won, err := a.Resolve(2, "morty")
		require.NoError(t, err)
		assert.Equal(t, "c2", won.ID)
	})
}

func TestArbitrator_InstallReplacesUncaughtSpawn(t *testing.T) {
	a := NewArbitrator()
	a.Install(1, testCharacter("c1", "Rick"), time.Now())
	a.Install(1, testCharacter("c2", "Morty"), time.Now())

	_, err := a.Resolve(1, "rick")
	require.Error(t, err, "replaced spawn is gone")

	won, err := a.Resolve(1, "morty")
	require.NoError(t, err)
	assert.Equal(t, "c2", won.ID)
}

func TestArbitrator_Clear(t *testing.T) {
	a := NewArbitrator()
	a.Install(1, testCharacter("c1", "Rick"), time.Now())
	a.Clear(1)
	assert.Nil(t, a.Active(1))
}

func TestArbitrator_ExactlyOneWinner(t *testing.T) {
	const guessers = 100
	a := NewArbitrator()
	a.Install(1, testCharacter("c1", "Rick Sanchez"), time.Now())

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	alreadyGuessed := 0
	for i := 0; i < guessers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Resolve(1, "rick sanchez")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case apperrors.IsConflict(err):
				alreadyGuessed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one concurrent guesser wins")
	assert.Equal(t, guessers-1, alreadyGuessed)
}

func TestMutexMap_LockPairDoesNotDeadlock(t *testing.T) {
	m := NewMutexMap()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		a, b := int64(i%3), int64((i+1)%3)
		go func() {
			defer wg.Done()
			release := m.LockPair(a, b)
			release()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock pair acquisition deadlocked")
	}
}

func TestMutexMap_SameKeyPair(t *testing.T) {
	m := NewMutexMap()
	release := m.LockPair(7, 7)
	release()
	release = m.LockPair(7, 7)
	release()
}

func TestMutexMap_SharedMutexPerKey(t *testing.T) {
	m := NewMutexMap()

	var wg sync.WaitGroup
	locks := make([]*sync.Mutex, 50)
	for i := range locks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locks[i] = m.Get(99)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(locks); i++ {
		require.Same(t, locks[0], locks[i], fmt.Sprintf("racer %d got a different mutex", i))
	}
}
