package guard

import (
	"sort"
	"strings"
	"sync"

	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/pkg/metrics"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// Guard запоминает последнее решение. Решение пересчитывается, только когда
// меняется пользователь, флаг загрузки или набор разрешенных ролей.
type Guard struct {
	logger  logger.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	key         memoKey
	last        Decision
	evaluations int
}

type memoKey struct {
	identity string
	loading  bool
	allowed  string
}

// New создает Guard
func New(log logger.Logger, m *metrics.Metrics) *Guard {
	if log == nil {
		log = logger.NewNop()
	}
	return &Guard{logger: log, metrics: m}
}

// Decide возвращает решение для состояния и набора ролей. changed равен true,
// если решение вычислено заново и отличается от предыдущего; только в этом
// случае вызывающему нужно выполнить перенаправление.
func (g *Guard) Decide(state session.State, allowed []session.Role) (decision Decision, changed bool) {
	key := memoKey{
		identity: identity(state.User),
		loading:  state.Loading,
		allowed:  canonical(allowed),
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last != "" && g.key == key {
		return g.last, false
	}

	decision = Authorize(state, allowed)
	g.evaluations++
	changed = decision != g.last
	g.key = key
	g.last = decision

	g.metrics.ObserveDecision(decision.String())
	if changed {
		g.logger.Debug("решение guard изменилось",
			logger.String("decision", decision.String()),
			logger.String("allowed", key.allowed))
	}
	return decision, changed
}

// Reset забывает последнее решение
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.key = memoKey{}
	g.last = ""
}

func identity(u *session.User) string {
	if u == nil {
		return ""
	}
	return u.ID + "|" + string(u.Role)
}

// canonical приводит набор ролей к отсортированной строке без повторов
func canonical(roles []session.Role) string {
	if len(roles) == 0 {
		return ""
	}
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[string(r)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
