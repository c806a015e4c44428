package reconcile

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/transport"
)

var _ transport.Server = (*Server)(nil)

// Server 把 Task 适配为 Kratos transport.Server，随 App 启停。
// task 为 nil（未启用）时 Start 阻塞到 Stop。
type Server struct {
	task *Task

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
}

// NewServer 构造对账 Server。
func NewServer(task *Task) *Server {
	return &Server{
		task: task,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start 运行对账循环，直到 Stop 或 ctx 取消。
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()
	defer close(s.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if s.task == nil {
		<-runCtx.Done()
		return nil
	}
	return s.task.Run(runCtx)
}

// Stop 通知对账循环退出，并等待当前轮次结束或 ctx 超时。
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
