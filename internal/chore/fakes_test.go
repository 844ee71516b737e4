package chore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

type memDefinitions struct {
	mu   sync.Mutex
	defs map[int64]model.TaskDefinition
}

func newMemDefinitions(defs ...model.TaskDefinition) *memDefinitions {
	m := &memDefinitions{defs: make(map[int64]model.TaskDefinition)}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

func (m *memDefinitions) ListActive(_ context.Context) ([]model.TaskDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TaskDefinition
	for _, d := range m.defs {
		if !d.Deleted {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDefinitions) GetByID(_ context.Context, id int64) (*model.TaskDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memDefinitions) edit(id int64, fn func(*model.TaskDefinition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.defs[id]
	fn(&d)
	d.Version++
	m.defs[id] = d
}

type memMembers []model.Member

func (m memMembers) List(_ context.Context) ([]model.Member, error) {
	return m, nil
}

type execKey struct {
	def  int64
	date string
}

type memExecutions struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.TaskExecution
	keys   map[execKey]int64
	defs   *memDefinitions

	// beforeDefinition runs inside UpdateWithDefinition after the row is
	// locked and before the definition is read.
	beforeDefinition func()
}

func newMemExecutions() *memExecutions {
	return &memExecutions{rows: make(map[int64]model.TaskExecution), keys: make(map[execKey]int64)}
}

func (m *memExecutions) CreateIfAbsent(_ context.Context, defID int64, date model.Date) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := execKey{defID, date.String()}
	if _, ok := m.keys[k]; ok {
		return 0, model.ErrDuplicateGeneration
	}
	m.nextID++
	m.rows[m.nextID] = model.TaskExecution{
		ID:            m.nextID,
		DefinitionID:  defID,
		ScheduledDate: date,
		Status:        model.StatusNotStarted,
		Version:       1,
	}
	m.keys[k] = m.nextID
	return m.nextID, nil
}

func (m *memExecutions) GetByID(_ context.Context, id int64) (*model.TaskExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, model.NotFoundError("task execution", id)
	}
	c := cloneExecution(e)
	return &c, nil
}

func (m *memExecutions) Update(_ context.Context, id int64, fn func(*model.TaskExecution) error) (*model.TaskExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, model.NotFoundError("task execution", id)
	}
	c := cloneExecution(e)
	if err := fn(&c); err != nil {
		return nil, err
	}
	c.Version++
	m.rows[id] = cloneExecution(c)
	return &c, nil
}

func (m *memExecutions) UpdateWithDefinition(ctx context.Context, id int64, fn func(*model.TaskExecution, *model.TaskDefinition) error) (*model.TaskExecution, error) {
	return m.Update(ctx, id, func(e *model.TaskExecution) error {
		if m.beforeDefinition != nil {
			m.beforeDefinition()
		}
		def, err := m.defs.GetByID(ctx, e.DefinitionID)
		if err != nil {
			return err
		}
		if def == nil {
			return model.NotFoundError("task definition", e.DefinitionID)
		}
		return fn(e, def)
	})
}

func (m *memExecutions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func cloneExecution(e model.TaskExecution) model.TaskExecution {
	if e.Snapshot != nil {
		s := *e.Snapshot
		e.Snapshot = &s
	}
	e.Participants = append([]model.Participant(nil), e.Participants...)
	return e
}

func d(y int, m time.Month, day int) model.Date {
	return model.NewDate(y, m, day)
}
