package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	xerrors "Greeter-Service/internal/errors"
	"Greeter-Service/internal/observability/metrics"
	"Greeter-Service/pkg/logger"
)

// Server 负责在根路径上返回配置的 message。
type Server struct {
	addr              string
	message           []byte
	metrics           *metrics.Collector
	access            *slog.Logger
	shutdownTimeout   time.Duration
	readHeaderTimeout time.Duration
	log               *slog.Logger
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithMetrics 为路由挂载 Prometheus 指标。
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithAccessLog 为每个请求写一行访问日志，nil 表示关闭。
func WithAccessLog(l *slog.Logger) Option {
	return func(s *Server) { s.access = l }
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithReadHeaderTimeout 设置读取请求头的超时时间。
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readHeaderTimeout = d
		}
	}
}

// NewServer 构造 API 服务实例。message 在构造时复制一份，之后只读。
func NewServer(addr, message string, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		message:           []byte(message),
		shutdownTimeout:   5 * time.Second,
		readHeaderTimeout: 5 * time.Second,
		log:               logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Addr 返回配置的监听地址。
func (s *Server) Addr() string {
	return s.addr
}

// Handler 返回挂好中间件的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// "/{$}" 只匹配根路径本身，其余路径交给 ServeMux 返回 404。
	mux.Handle("/{$}", s.metrics.Middleware("root", http.HandlerFunc(s.handleRoot)))

	var handler http.Handler = mux
	handler = withAccessLog(s.access, handler)
	handler = withRequestID(handler)
	return handler
}

// Start 监听配置的地址并提供服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeServerFailure, err, "监听地址失败",
			xerrors.WithMetadata("address", s.addr))
	}
	return s.Serve(ctx, ln)
}

// Serve 在调用方提供的 listener 上提供服务。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("HTTP 服务已启动", slog.String("address", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP 服务关闭超时", slog.String("error", err.Error()))
		}
		s.log.Info("HTTP 服务已停止")
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return xerrors.Wrap(xerrors.CodeServerFailure, err, "HTTP 服务异常退出")
	}
}

// handleRoot 原样返回 message。
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.message)
}
