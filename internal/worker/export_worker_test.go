package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaymemo/internal/amqp"
	"birthdaymemo/internal/core"
)

type fakeLoader struct {
	records map[string]core.Record
	err     error
}

func (f *fakeLoader) Load(_ context.Context, username string) (core.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.records[username]; ok {
		return rec, nil
	}
	return core.Record{}, nil
}

func (f *fakeLoader) ListUsers(_ context.Context) ([]string, error) {
	var users []string
	for u := range f.records {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

type fakeExporter struct {
	mu       sync.Mutex
	exported map[string]core.Record
	err      error
}

func (f *fakeExporter) ExportHistory(_ context.Context, username string, rec core.Record) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exported == nil {
		f.exported = map[string]core.Record{}
	}
	f.exported[username] = rec
	return nil
}

func TestHandleMemoSavedExportsFullRecord(t *testing.T) {
	rec := core.Record{core.Self: {{Name: "Alice", Year: 2020, Note: "cake"}}}
	loader := &fakeLoader{records: map[string]core.Record{"maeda": rec}}
	exporter := &fakeExporter{}
	w := NewExportWorker(loader, exporter, 2)

	err := w.HandleMemoSaved(context.Background(), amqp.NewMemoSavedMessage("maeda", 2020, []string{"self"}))
	require.NoError(t, err)
	assert.Equal(t, rec, exporter.exported["maeda"])
}

func TestHandleMemoSavedPropagatesErrors(t *testing.T) {
	msg := amqp.NewMemoSavedMessage("maeda", 2020, nil)

	w := NewExportWorker(&fakeLoader{err: errors.New("disk")}, &fakeExporter{}, 1)
	err := w.HandleMemoSaved(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load record for maeda")

	w = NewExportWorker(&fakeLoader{}, &fakeExporter{err: errors.New("quota")}, 1)
	err = w.HandleMemoSaved(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export history for maeda")
}

func TestExportAll(t *testing.T) {
	loader := &fakeLoader{records: map[string]core.Record{
		"a": {core.Self: {{Name: "A", Year: 2020}}},
		"b": {core.Spouse: {{Name: "B", Year: 2021}}},
		"c": {},
	}}
	exporter := &fakeExporter{}

	require.NoError(t, NewExportWorker(loader, exporter, 0).ExportAll(context.Background(), loader))
	assert.Len(t, exporter.exported, 3)
}
