package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

func dataset(t *testing.T) *dashboard.Dataset {
	t.Helper()
	ds, err := dashboard.NewEngine().Load(table.FromStrings(
		[]string{"Stage", "Source", "Responsible", "Date of creation"},
		[][]string{
			{"New", "Web", "Ann", "01.01.2024"},
			{"Won", "Call", "Bob", "02.01.2024"},
		},
	))
	require.NoError(t, err)
	return ds
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore()
	sess := s.Create("upload:leads.csv", dataset(t))
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "upload:leads.csv", got.Source)
	assert.NotNil(t, got.Filters)

	narrowed, err := got.Filters.Select(schema.Stage, []string{"Won"})
	require.NoError(t, err)
	updated, err := s.SetFilters(sess.ID, narrowed)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Dataset.Apply(updated.Filters).Len())

	// The original selection is untouched
	assert.Equal(t, 2, got.Dataset.Apply(got.Filters).Len())

	s.Delete(sess.ID)
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SetFilters(sess.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Purge(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = c.now

	ds := dataset(t)
	old := s.Create("a", ds)
	c.t = c.t.Add(20 * time.Minute)
	fresh := s.Create("b", ds)

	c.t = c.t.Add(15 * time.Minute)
	assert.Equal(t, 1, s.Purge(30*time.Minute))

	_, err := s.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestStore_List(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = c.now
	ds := dataset(t)

	first := s.Create("first", ds)
	c.t = c.t.Add(time.Second)
	second := s.Create("second", ds)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}
