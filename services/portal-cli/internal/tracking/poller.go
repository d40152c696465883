// Package tracking периодически опрашивает геопозицию бригады.
package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/services/portal-cli/internal/portal"
)

// DefaultInterval интервал опроса по умолчанию
const DefaultInterval = 10 * time.Second

// FetchFunc загружает текущую позицию
type FetchFunc func(ctx context.Context) (*portal.Location, error)

// Update результат одного опроса: позиция или ошибка
type Update struct {
	Location *portal.Location
	Err      error
	At       time.Time
}

// Poller опрашивает позицию сразу после Start и далее с фиксированным
// интервалом. Ошибки передаются обработчику, опрос продолжается. Ошибка
// SESSION_EXPIRED останавливает опрос.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	handler  func(Update)
	logger   logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller создает Poller. interval <= 0 означает DefaultInterval.
func NewPoller(fetch FetchFunc, interval time.Duration, handler func(Update), log logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewNop()
	}
	if handler == nil {
		handler = func(Update) {}
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		handler:  handler,
		logger:   log,
	}
}

// Start запускает опрос. Повторный Start без Stop возвращает ошибку.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		select {
		case <-p.done:
		default:
			return fmt.Errorf("poller already running")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)

	p.logger.Debug("опрос геопозиции запущен", logger.Duration("interval", p.interval))
	return nil
}

// Stop останавливает опрос и ждет завершения цикла. Повторный вызов безопасен.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done закрывается, когда цикл опроса завершился
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

// Running сообщает, идет ли опрос
func (p *Poller) Running() bool {
	select {
	case <-p.Done():
		return false
	default:
		return true
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.poll(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll выполняет один опрос; false означает, что цикл нужно завершить
func (p *Poller) poll(ctx context.Context) bool {
	loc, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return false
	}

	p.handler(Update{Location: loc, Err: err, At: time.Now()})

	if err != nil {
		if errors.HasCode(err, errors.ErrSessionExpired) {
			p.logger.Warn("опрос геопозиции остановлен: сессия истекла")
			return false
		}
		p.logger.Debug("ошибка опроса геопозиции", logger.Error(err))
	}
	return true
}
