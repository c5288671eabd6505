package clientstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goClerk/resource"
)

func clientWithSignUp(id, signUpID string) *resource.Client {
	return &resource.Client{
		ID:     id,
		SignUp: &resource.SignUp{ID: signUpID, Status: resource.SignUpMissingRequirements, MissingFields: []string{"password"}},
		Sessions: []resource.Session{
			{ID: "sess_" + id, Status: resource.SessionActive},
		},
		LastActiveSessionID: "sess_" + id,
	}
}

func TestCurrentNilBeforeLoad(t *testing.T) {
	s := New()
	assert.Nil(t, s.Current())
	assert.Equal(t, uint64(0), s.Snapshot().Version)
	assert.Empty(t, s.ID())
}

func TestReplaceNilStoresEmptyClient(t *testing.T) {
	s := New()
	snap := s.Replace(nil)
	require.NotNil(t, snap.Client)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, &resource.Client{}, s.Current())
}

func TestCurrentIsACopy(t *testing.T) {
	s := New()
	in := clientWithSignUp("client_1", "su_1")
	s.Replace(in)

	in.SignUp.ID = "mutated"
	got := s.Current()
	assert.Equal(t, "su_1", got.SignUp.ID)

	got.SignUp.MissingFields[0] = "mutated"
	got.Sessions[0].Status = resource.SessionEnded
	again := s.Current()
	assert.Equal(t, "password", again.SignUp.MissingFields[0])
	assert.Equal(t, resource.SessionActive, again.Sessions[0].Status)
}

func TestLastReplaceWins(t *testing.T) {
	s := New()
	s.Replace(clientWithSignUp("client_1", "su_old"))
	s.Replace(clientWithSignUp("client_1", "su_new"))
	assert.Equal(t, "su_new", s.Current().SignUpID())
	assert.Equal(t, uint64(2), s.Snapshot().Version)

	s.Reset()
	assert.Empty(t, s.Current().ID)
	assert.Nil(t, s.Current().SignUp)
}

// Readers must only ever observe one of the written snapshots in full.
func TestConcurrentReplaceNeverTears(t *testing.T) {
	s := New()
	const writers, writes = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				s.Replace(clientWithSignUp("client_"+id, "su_"+id))
			}
		}(w)
	}

	done := make(chan struct{})
	var torn []string
	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			c := s.Current()
			if c == nil {
				continue
			}
			suffix := c.ID[len("client_"):]
			if c.SignUpID() != "su_"+suffix || c.LastActiveSessionID != "sess_"+c.ID {
				torn = append(torn, c.ID)
			}
		}
	}()

	wg.Wait()
	close(done)
	readerWG.Wait()

	assert.Empty(t, torn)
	assert.Equal(t, uint64(writers*writes), s.Snapshot().Version)
}

func TestSubscribeReceivesReplacements(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(4)
	defer cancel()

	s.Replace(clientWithSignUp("client_1", "su_1"))
	s.Replace(clientWithSignUp("client_1", "su_2"))

	first := <-ch
	second := <-ch
	assert.Equal(t, "su_1", first.Client.SignUpID())
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, "su_2", second.Client.SignUpID())
	assert.Equal(t, uint64(2), second.Version)
}

// A subscriber that drains after a burst of concurrent replacements must end
// on the version the store holds.
func TestConcurrentReplaceDeliversNewestLast(t *testing.T) {
	const rounds, writers = 200, 32
	for r := 0; r < rounds; r++ {
		s := New()
		ch, cancel := s.Subscribe(writers * 2)

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				s.Replace(clientWithSignUp(fmt.Sprintf("client_%d", w), fmt.Sprintf("su_%d", w)))
			}(w)
		}
		wg.Wait()

		var last Snapshot
		var prev uint64
		for len(ch) > 0 {
			last = <-ch
			require.Greater(t, last.Version, prev, "round %d delivered versions out of order", r)
			prev = last.Version
		}
		want := s.Snapshot()
		require.Equal(t, want.Version, last.Version, "round %d", r)
		require.Equal(t, want.Client.ID, last.Client.ID, "round %d", r)
		cancel()
	}
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := 1; i <= 5; i++ {
		s.Replace(clientWithSignUp("client_1", fmt.Sprintf("su_%d", i)))
	}

	snap := <-ch
	assert.Equal(t, "su_5", snap.Client.SignUpID())
	assert.Equal(t, uint64(5), snap.Version)
	assert.Len(t, ch, 0)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	s.Replace(clientWithSignUp("client_1", "su_1"))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)
	s.Close()

	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := s.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)

	s.Replace(clientWithSignUp("client_1", "su_1"))
	assert.Equal(t, "su_1", s.Current().SignUpID())
}
