package voice

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/model"
	"k8s.io/klog/v2"
)

var (
	ErrDisabled  = errors.New("voice is disabled")
	ErrStopped   = errors.New("voice adapter is stopped")
	ErrQueueFull = errors.New("speech queue is full")
)

// speakTimeout 单条语音的最长播放时间
const speakTimeout = 2 * time.Minute

// Runner 执行外部命令并返回 stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return output, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return output, fmt.Errorf("%s failed: %w", name, err)
	}
	return output, nil
}

type utterance struct {
	text string
	role model.Role
}

// Adapter 语音适配器。
// Speak 只把文本放进有界队列，由分发循环提交到 ants 协程池播放，发言流程不会被阻塞。
type Adapter struct {
	cfg    config.VoiceConfig
	runner Runner

	queue chan utterance
	pool  *ants.Pool

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAdapter 创建语音适配器，未启用时返回的适配器所有操作均为空操作
func NewAdapter(cfg config.VoiceConfig) (*Adapter, error) {
	return NewAdapterWithRunner(cfg, execRunner{})
}

func NewAdapterWithRunner(cfg config.VoiceConfig, runner Runner) (*Adapter, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		cfg:    cfg,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
	if !cfg.Enabled {
		return a, nil
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 32
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(5*time.Minute),
		ants.WithPanicHandler(func(r any) {
			klog.Errorf("语音任务 panic: %v", r)
		}),
	)
	if err != nil {
		cancel()
		klog.Errorf("语音协程池初始化失败: %v", err)
		return nil, err
	}
	a.pool = pool
	a.queue = make(chan utterance, queueSize)

	a.wg.Add(1)
	go a.dispatchLoop()
	klog.V(6).Infof("语音适配器已启动: workers=%d, queueSize=%d", workers, queueSize)
	return a, nil
}

func (a *Adapter) Enabled() bool {
	return a != nil && a.cfg.Enabled
}

// Speak 异步播放文本，失败只记录日志
func (a *Adapter) Speak(text string, role model.Role) {
	if err := a.enqueue(text, role); err != nil && !errors.Is(err, ErrDisabled) {
		klog.Warningf("语音播放已丢弃: role=%s, err=%v", role, err)
	}
}

func (a *Adapter) enqueue(text string, role model.Role) error {
	if !a.Enabled() {
		return ErrDisabled
	}
	if strings.TrimSpace(text) == "" || len(a.cfg.TTSCommand) == 0 {
		return nil
	}
	select {
	case <-a.ctx.Done():
		return ErrStopped
	default:
	}

	select {
	case a.queue <- utterance{text: text, role: role}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Adapter) dispatchLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case u := <-a.queue:
			if err := a.pool.Submit(func() { a.speak(u) }); err != nil {
				klog.Errorf("提交语音任务失败: role=%s, err=%v", u.role, err)
			}
		}
	}
}

func (a *Adapter) speak(u utterance) {
	ctx, cancel := context.WithTimeout(a.ctx, speakTimeout)
	defer cancel()

	name, args := a.ttsArgs(u)
	if _, err := a.runner.Run(ctx, name, args...); err != nil {
		klog.Warningf("语音播放失败: role=%s, err=%v", u.role, err)
		return
	}
	klog.V(6).Infof("语音播放完成: role=%s, textLength=%d", u.role, len(u.text))
}

func (a *Adapter) ttsArgs(u utterance) (string, []string) {
	voice := a.cfg.SellerVoice
	if u.role == model.RoleBuyer {
		voice = a.cfg.BuyerVoice
	}
	replacer := strings.NewReplacer(
		"{voice}", voice,
		"{rate}", strconv.Itoa(a.cfg.Rate),
		"{volume}", strconv.FormatFloat(a.cfg.Volume, 'f', -1, 64),
		"{amplitude}", strconv.Itoa(int(a.cfg.Volume*200)),
		"{text}", u.text,
	)
	return expand(a.cfg.TTSCommand, replacer, u.text)
}

// Listen 调用语音识别命令，超时、失败或无结果时 ok 为 false
func (a *Adapter) Listen(ctx context.Context, timeout time.Duration) (string, bool) {
	if !a.Enabled() || len(a.cfg.STTCommand) == 0 {
		return "", false
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replacer := strings.NewReplacer("{timeout}", strconv.Itoa(int(timeout.Seconds())))
	name, args := expand(a.cfg.STTCommand, replacer, "")
	output, err := a.runner.Run(ctx, name, args...)
	if err != nil {
		if ctx.Err() != nil {
			klog.V(6).Infof("语音识别超时: timeout=%v", timeout)
		} else {
			klog.Warningf("语音识别失败: %v", err)
		}
		return "", false
	}

	text := strings.TrimSpace(string(output))
	if text == "" {
		return "", false
	}
	return text, true
}

// Close 停止接收新语音，中断正在播放的命令并释放协程池
func (a *Adapter) Close() {
	if a == nil {
		return
	}
	a.stopOnce.Do(func() {
		a.cancel()
		if a.pool == nil {
			return
		}
		a.wg.Wait()
		if err := a.pool.ReleaseTimeout(10 * time.Second); err != nil {
			klog.Warningf("语音协程池释放超时: %v", err)
		}
	})
}

// expand 替换命令模板中的占位符；模板不含 {text} 且 trailing 非空时追加到末尾
func expand(template []string, replacer *strings.Replacer, trailing string) (string, []string) {
	hasText := false
	out := make([]string, 0, len(template)+1)
	for _, part := range template {
		if strings.Contains(part, "{text}") {
			hasText = true
		}
		out = append(out, replacer.Replace(part))
	}
	if !hasText && trailing != "" {
		out = append(out, trailing)
	}
	return out[0], out[1:]
}
