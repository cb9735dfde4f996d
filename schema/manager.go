package schema

import (
	"context"
	"errors"

	"github.com/Luismorlan/msprsearch/search"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrIndexAbsent = errors.New("index does not exist")

type State string

const (
	Absent          State = "ABSENT"
	Creating        State = "CREATING"
	Open            State = "OPEN"
	ClosedForUpdate State = "CLOSED_FOR_UPDATE"
)

type Policy int

const (
	// Replace deletes an existing index and creates it again, empty.
	Replace Policy = iota
	// InPlace keeps an existing index and its documents.
	InPlace
)

func (p Policy) String() string {
	if p == Replace {
		return "replace"
	}
	return "in_place"
}

// Manager owns the lifecycle of one index. Every path through
// ApplySchemaEvolution ends with the index open, unless reopening itself
// fails.
type Manager struct {
	engine search.Engine
	index  string
	state  State
	log    *logrus.Entry
}

func NewManager(engine search.Engine, index string, log *logrus.Entry) *Manager {
	if log == nil {
		log = Logger.Log
	}
	return &Manager{
		engine: engine,
		index:  index,
		state:  Absent,
		log:    log.WithFields(logrus.Fields{"component": "schema", "index": index}),
	}
}

func (m *Manager) State() State { return m.state }

func (m *Manager) Index() string { return m.index }

func (m *Manager) transition(to State) {
	m.log.WithFields(logrus.Fields{"from": m.state, "to": to}).Info("index state change")
	m.state = to
}

// EnsureIndex makes sure the index exists and is open. It reports whether
// the index was (re)created, in which case it holds no documents.
func (m *Manager) EnsureIndex(ctx context.Context, def Definition, policy Policy) (bool, error) {
	exists, err := m.engine.IndexExists(ctx, m.index)
	if err != nil {
		return false, pkgerrors.Wrap(err, "check index existence")
	}

	if exists {
		if policy == InPlace {
			m.log.Info("index exists, keeping documents")
			m.state = Open
			return false, nil
		}
		m.state = Open
		m.log.Warn("index exists, deleting it, all documents will be lost")
		if err := m.Delete(ctx); err != nil {
			return false, err
		}
	}

	m.transition(Creating)
	if err := m.engine.CreateIndex(ctx, m.index, def.Body()); err != nil {
		m.transition(Absent)
		return false, pkgerrors.Wrap(err, "create index")
	}
	m.transition(Open)
	return true, nil
}

// Delete drops the index and every document in it.
func (m *Manager) Delete(ctx context.Context) error {
	if err := m.engine.DeleteIndex(ctx, m.index); err != nil {
		return pkgerrors.Wrap(err, "delete index")
	}
	m.transition(Absent)
	return nil
}

// ApplySchemaEvolution closes the index, puts the settings and mappings of
// evo, reopens it and refreshes.
func (m *Manager) ApplySchemaEvolution(ctx context.Context, evo Evolution) error {
	if m.state == Absent {
		exists, err := m.engine.IndexExists(ctx, m.index)
		if err != nil {
			return pkgerrors.Wrap(err, "check index existence")
		}
		if !exists {
			return pkgerrors.Wrap(ErrIndexAbsent, m.index)
		}
		m.state = Open
	}

	err := m.withClosedIndex(ctx, func() error {
		if len(evo.Settings) > 0 {
			if err := m.engine.PutSettings(ctx, m.index, evo.Settings); err != nil {
				return pkgerrors.Wrap(err, "put settings")
			}
			m.log.Info("analysis settings updated")
		}
		for i, mapping := range evo.Mappings {
			if err := m.engine.PutMapping(ctx, m.index, mapping); err != nil {
				return pkgerrors.Wrapf(err, "put mapping %d", i)
			}
		}
		m.log.WithField("mappings", len(evo.Mappings)).Info("mappings updated")
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.engine.Refresh(ctx, m.index); err != nil {
		return pkgerrors.Wrap(err, "refresh index")
	}
	return nil
}

// withClosedIndex runs fn between a close and a reopen. The reopen runs on
// every exit path, including panics and a cancelled ctx. A reopen failure
// never hides the error from fn.
func (m *Manager) withClosedIndex(ctx context.Context, fn func() error) (err error) {
	if err := m.engine.CloseIndex(ctx, m.index); err != nil {
		return pkgerrors.Wrap(err, "close index")
	}
	m.transition(ClosedForUpdate)

	defer func() {
		r := recover()
		if openErr := m.engine.OpenIndex(context.WithoutCancel(ctx), m.index); openErr != nil {
			m.log.WithError(openErr).Error("failed to reopen index, it must be reopened manually")
			if err == nil {
				err = pkgerrors.Wrap(openErr, "reopen index")
			} else {
				err = pkgerrors.Wrapf(err, "reopen failed: %v", openErr)
			}
		} else {
			m.transition(Open)
		}
		if r != nil {
			panic(r)
		}
	}()

	return fn()
}
