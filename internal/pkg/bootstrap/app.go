// Package bootstrap 统一服务进程的启动与优雅关停：
// 多个 HTTP server 并行启动，收到退出信号后在限定时间内
// 按注册顺序执行关停钩子。
package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

type App struct {
	name    string
	servers []namedServer
	hooks   []hook
}

type namedServer struct {
	name string
	srv  *http.Server
}

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

func New(name string) *App { return &App{name: name} }

// AddServer 注册一个 HTTP server，启动和关停都由 App 接管。
// server 的关停排在此前已注册的钩子之后。
func (a *App) AddServer(name string, srv *http.Server) {
	a.servers = append(a.servers, namedServer{name: name, srv: srv})
	a.hooks = append(a.hooks, hook{name: name, fn: srv.Shutdown})
}

// OnShutdown 注册一个关停钩子。钩子按注册顺序执行，
// 需要在停止接收流量之前完成的动作（例如注销服务实例）应先注册。
func (a *App) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// Run 启动所有 server 并阻塞，直到收到 SIGINT/SIGTERM，
// 然后在 timeout 内依次执行关停钩子。
func (a *App) Run(timeout time.Duration) error {
	var g errgroup.Group
	for _, s := range a.servers {
		g.Go(func() error {
			log.Printf("✅ %s: %s listening on %s", a.name, s.name, s.srv.Addr)
			if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("🛑 Shutting down %s...", a.name)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, h := range a.hooks {
		if err := h.fn(ctx); err != nil {
			log.Printf("%s: shutdown %s: %v", a.name, h.name, err)
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("%s gracefully shut down.", a.name)
	return nil
}
