package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/eventbus"
	"github.com/weibaohui/negotiator/internal/handler"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
	"github.com/weibaohui/negotiator/internal/pkg/metrics"
	"github.com/weibaohui/negotiator/internal/pkg/voice"
	"github.com/weibaohui/negotiator/internal/router"
	"github.com/weibaohui/negotiator/internal/service"
	"github.com/weibaohui/negotiator/internal/subscriber"
	"k8s.io/klog/v2"
)

// App 进程内共享的组件
type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Bus     *eventbus.NegotiationEventBus
	Voice   *voice.Adapter
	Service service.NegotiationService
	Hub     *handler.Hub

	unsubscribes []func()
}

// New 组装生成器、事件总线、语音和谈判服务；HTTP 相关组件由 Engine 按需创建
func New(cfg *config.Config) (*App, error) {
	m := metrics.New()

	generator, err := llm.NewGenerator(cfg, m)
	if err != nil {
		return nil, err
	}
	return NewWithGenerator(cfg, generator, m)
}

// NewWithGenerator 使用指定生成器组装，便于测试
func NewWithGenerator(cfg *config.Config, generator llm.Generator, m *metrics.Metrics) (*App, error) {
	adapter, err := voice.NewAdapter(cfg.Voice)
	if err != nil {
		return nil, err
	}

	bus := eventbus.NewNegotiationEventBus()
	a := &App{
		Config:  cfg,
		Metrics: m,
		Bus:     bus,
		Voice:   adapter,
		Service: service.NewNegotiationService(cfg, generator, bus, adapter),
	}
	a.unsubscribes = append(a.unsubscribes,
		subscriber.NewMetricsSubscriber(m).Register(bus),
		subscriber.NewVoiceSubscriber(adapter).Register(bus),
	)

	klog.V(6).Infof("组件初始化完成: provider=%s, model=%s, voice=%v", cfg.LLM.Provider, cfg.LLM.Model, adapter.Enabled())
	return a, nil
}

// Engine 创建 WebSocket Hub 并返回 gin 路由
func (a *App) Engine() *gin.Engine {
	if a.Hub == nil {
		a.Hub = handler.NewHub(a.Service)
		a.unsubscribes = append(a.unsubscribes, subscriber.NewBroadcastSubscriber(a.Hub).Register(a.Bus))
	}
	negotiationHandler := handler.NewNegotiationHandler(a.Service, a.Config.Negotiation.AutoRounds)
	return router.Setup(a.Config, negotiationHandler, a.Hub, a.Metrics.Handler())
}

// Serve 启动 HTTP 服务，ctx 结束后优雅关闭
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Server starting on port %s...", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	klog.V(6).Info("收到退出信号，正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// 先中断进行中的生成请求，避免长请求拖住关闭
	a.Service.Cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close 取消订阅并释放语音和 WebSocket 资源
func (a *App) Close() {
	for _, unsubscribe := range a.unsubscribes {
		unsubscribe()
	}
	a.unsubscribes = nil
	a.Service.Cancel()
	if a.Hub != nil {
		a.Hub.Close()
	}
	a.Voice.Close()
}
