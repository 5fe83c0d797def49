package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/loungeclock/internal/record"
	"github.com/loykin/loungeclock/internal/registry"
	"github.com/loykin/loungeclock/pkg/client"
)

type fakeRemote struct {
	password  string
	snapshot  []record.Record
	saved     []client.SaveRequest
	checks    int
	autoPause []string
	fetchErr  error
	saveErr   error
	checkErr  error
}

func (f *fakeRemote) FetchClients(context.Context) ([]record.Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return record.CloneAll(f.snapshot), nil
}

func (f *fakeRemote) SaveClients(_ context.Context, req client.SaveRequest) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, req)
	f.snapshot = record.CloneAll(req.Clients)
	return nil
}

func (f *fakeRemote) CheckPassword(_ context.Context, pw string) (bool, error) {
	f.checks++
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return pw == f.password, nil
}

func (f *fakeRemote) LogAutoPause(_ context.Context, id, _ string) error {
	f.autoPause = append(f.autoPause, id)
	return nil
}

func setup() (*fakeRemote, *registry.Registry, *Coordinator) {
	f := &fakeRemote{password: "pw", snapshot: []record.Record{{ID: "r1", Name: "remote", TotalSeconds: 60, Paused: true}}}
	reg := registry.New()
	return f, reg, New(f, reg, nil)
}

func TestPullSkippedWhileDirty(t *testing.T) {
	_, reg, c := setup()
	require.NoError(t, reg.Add(record.Record{ID: "local", Name: "l", TotalSeconds: 5, Paused: true}))
	c.MarkDirty()

	pulled, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.False(t, pulled)
	_, ok := reg.Get("local")
	assert.True(t, ok, "dirty pull must not touch the registry")

	require.NoError(t, c.Push(context.Background(), "pw", "Added l"))
	assert.Equal(t, StateClean, c.State())

	pulled, err = c.Pull(context.Background())
	require.NoError(t, err)
	assert.True(t, pulled)
	assert.Equal(t, 1, reg.Len())
}

func TestPullFailureKeepsRegistry(t *testing.T) {
	f, reg, c := setup()
	require.NoError(t, reg.Add(record.Record{ID: "keep", Name: "k", TotalSeconds: 5}))
	f.fetchErr = errors.New("network down")
	_, err := c.Pull(context.Background())
	assert.Error(t, err)
	_, ok := reg.Get("keep")
	assert.True(t, ok)
}

func TestPushFiltersMalformed(t *testing.T) {
	f, reg, c := setup()
	require.NoError(t, reg.Add(record.Record{ID: "ok", Name: "n", TotalSeconds: 10}))
	require.NoError(t, reg.Add(record.Record{ID: "zero", Name: "z", TotalSeconds: 0}))
	require.NoError(t, reg.Add(record.Record{ID: "noname", TotalSeconds: 10}))
	c.MarkDirty()

	require.NoError(t, c.Push(context.Background(), "pw", "Started n"))
	require.Len(t, f.saved, 1)
	assert.Equal(t, "Started n", f.saved[0].Description)
	assert.Equal(t, "pw", f.saved[0].Password)
	require.Len(t, f.saved[0].Clients, 1)
	assert.Equal(t, "ok", f.saved[0].Clients[0].ID)
}

func TestPushFailureKeepsDirty(t *testing.T) {
	f, _, c := setup()
	c.MarkDirty()
	f.saveErr = errors.New("503")
	err := c.Push(context.Background(), "pw", "x")
	assert.Error(t, err)
	assert.Equal(t, StateDirty, c.State())
}

func TestPushUnauthorized(t *testing.T) {
	f, _, c := setup()
	c.MarkDirty()
	err := c.Push(context.Background(), "wrong", "x")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, f.saved)
	assert.Equal(t, StateDirty, c.State())

	f.saveErr = client.ErrUnauthorized
	assert.ErrorIs(t, c.Push(context.Background(), "pw", "x"), ErrUnauthorized)
}

func TestValidateSecretFailsClosed(t *testing.T) {
	f, _, c := setup()
	assert.False(t, c.ValidateSecret(context.Background(), ""))
	assert.Equal(t, 0, f.checks, "blank secret must not reach the remote")
	assert.True(t, c.ValidateSecret(context.Background(), "pw"))
	f.checkErr = errors.New("timeout")
	assert.False(t, c.ValidateSecret(context.Background(), "pw"))
}

func TestLogAutoPause(t *testing.T) {
	f, _, c := setup()
	c.LogAutoPause(context.Background(), record.Record{ID: "x", Name: "X"})
	assert.Equal(t, []string{"x"}, f.autoPause)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "clean", StateClean.String())
	assert.Equal(t, "dirty", StateDirty.String())
}
