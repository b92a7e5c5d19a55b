package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/internal/domain"
)

type fakeDirectory struct {
	existing  map[string]domain.ID
	created   []string
	findErr   error
	createErr error
}

func (f *fakeDirectory) FindChannel(ctx context.Context, guildID domain.ID, name string, parentID domain.ID) (domain.ID, bool, error) {
	if f.findErr != nil {
		return 0, false, f.findErr
	}
	id, ok := f.existing[name]
	return id, ok, nil
}

func (f *fakeDirectory) CreateBroadcastChannel(ctx context.Context, guildID domain.ID, name string, parentID domain.ID) (domain.ID, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, name)
	return 555, nil
}

var testTarget = DestinationTarget{GuildID: 1, Name: "leaks", CategoryID: 2}

func TestResolveDestination_Existing(t *testing.T) {
	dir := &fakeDirectory{existing: map[string]domain.ID{"leaks": 300}}
	id, err := ResolveDestination(context.Background(), dir, testTarget)
	require.NoError(t, err)
	assert.Equal(t, domain.ID(300), id)
	assert.Empty(t, dir.created)
}

func TestResolveDestination_CreatesMissing(t *testing.T) {
	dir := &fakeDirectory{existing: map[string]domain.ID{}}
	id, err := ResolveDestination(context.Background(), dir, testTarget)
	require.NoError(t, err)
	assert.Equal(t, domain.ID(555), id)
	assert.Equal(t, []string{"leaks"}, dir.created)
}

func TestRefreshDestination(t *testing.T) {
	pointer := NewDestinationPointer(100)

	dir := &fakeDirectory{existing: map[string]domain.ID{"leaks": 300}}
	id, err := RefreshDestination(context.Background(), dir, testTarget, pointer, testLogger())
	require.NoError(t, err)
	assert.Equal(t, domain.ID(300), id)
	assert.Equal(t, domain.ID(300), pointer.Get())

	failing := &fakeDirectory{createErr: errors.New("missing permissions")}
	_, err = RefreshDestination(context.Background(), failing, testTarget, pointer, testLogger())
	assert.ErrorContains(t, err, "missing permissions")
	assert.Equal(t, domain.ID(300), pointer.Get(), "failed refresh keeps the old channel")
}

func TestDestinationPointer_ConcurrentAccess(t *testing.T) {
	pointer := NewDestinationPointer(1)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			pointer.Set(domain.ID(i + 1))
		}(i)
		go func() {
			defer wg.Done()
			assert.NotZero(t, pointer.Get())
		}()
	}
	wg.Wait()
}
