package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/model"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	output string
	err    error
	block  bool
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{name: name, args: args})
	block, output, err := r.block, r.output, r.err
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte(output), err
}

func (r *fakeRunner) recorded() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func enabledConfig() config.VoiceConfig {
	cfg := config.Default().Voice
	cfg.Enabled = true
	cfg.STTCommand = []string{"stt", "--timeout", "{timeout}"}
	return cfg
}

func TestSpeakDisabledIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	a, err := NewAdapterWithRunner(config.Default().Voice, runner)
	require.NoError(t, err)
	defer a.Close()

	a.Speak("hello", model.RoleBuyer)
	assert.ErrorIs(t, a.enqueue("hello", model.RoleBuyer), ErrDisabled)
	assert.Empty(t, runner.recorded())

	text, ok := a.Listen(context.Background(), time.Second)
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestSpeakUsesRoleVoice(t *testing.T) {
	runner := &fakeRunner{}
	a, err := NewAdapterWithRunner(enabledConfig(), runner)
	require.NoError(t, err)
	defer a.Close()

	a.Speak("I can offer $600", model.RoleBuyer)
	require.Eventually(t, func() bool { return len(runner.recorded()) == 1 }, time.Second, 5*time.Millisecond)

	a.Speak("Asking $900", model.RoleSeller)
	require.Eventually(t, func() bool { return len(runner.recorded()) == 2 }, time.Second, 5*time.Millisecond)

	calls := runner.recorded()
	assert.Equal(t, "espeak-ng", calls[0].name)
	assert.Equal(t, []string{"-v", "en-us+m3", "-s", "150", "-a", "180", "I can offer $600"}, calls[0].args)
	assert.Equal(t, []string{"-v", "en-us+f3", "-s", "150", "-a", "180", "Asking $900"}, calls[1].args)
}

func TestSpeakTextPlaceholder(t *testing.T) {
	cfg := enabledConfig()
	cfg.TTSCommand = []string{"say", "--text={text}", "--voice", "{voice}"}
	runner := &fakeRunner{}
	a, err := NewAdapterWithRunner(cfg, runner)
	require.NoError(t, err)
	defer a.Close()

	a.Speak("literal {voice}", model.RoleSeller)
	require.Eventually(t, func() bool { return len(runner.recorded()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"--text=literal {voice}", "--voice", "en-us+f3"}, runner.recorded()[0].args)
}

func TestSpeakFailureIsSwallowed(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no audio device")}
	a, err := NewAdapterWithRunner(enabledConfig(), runner)
	require.NoError(t, err)
	defer a.Close()

	assert.NotPanics(t, func() { a.Speak("hello", model.RoleSeller) })
	require.Eventually(t, func() bool { return len(runner.recorded()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSpeakNeverBlocksWhenQueueFull(t *testing.T) {
	cfg := enabledConfig()
	cfg.QueueSize = 1
	runner := &fakeRunner{block: true}
	a, err := NewAdapterWithRunner(cfg, runner)
	require.NoError(t, err)
	defer a.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			a.Speak("hello", model.RoleBuyer)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Speak blocked")
	}
}

func TestSpeakAfterClose(t *testing.T) {
	a, err := NewAdapterWithRunner(enabledConfig(), &fakeRunner{})
	require.NoError(t, err)
	a.Close()
	a.Close()

	assert.ErrorIs(t, a.enqueue("hello", model.RoleBuyer), ErrStopped)
}

func TestListen(t *testing.T) {
	runner := &fakeRunner{output: "  I'll pay $700  \n"}
	a, err := NewAdapterWithRunner(enabledConfig(), runner)
	require.NoError(t, err)
	defer a.Close()

	text, ok := a.Listen(context.Background(), 3*time.Second)
	assert.True(t, ok)
	assert.Equal(t, "I'll pay $700", text)
	calls := runner.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "stt", calls[0].name)
	assert.Equal(t, []string{"--timeout", "3"}, calls[0].args)
}

func TestListenAbsent(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"empty output", &fakeRunner{output: "   "}},
		{"command failure", &fakeRunner{err: errors.New("exit status 1")}},
		{"timeout", &fakeRunner{block: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAdapterWithRunner(enabledConfig(), tt.runner)
			require.NoError(t, err)
			defer a.Close()

			text, ok := a.Listen(context.Background(), 20*time.Millisecond)
			assert.False(t, ok)
			assert.Empty(t, text)
		})
	}
}

func TestNilAdapter(t *testing.T) {
	var a *Adapter
	assert.False(t, a.Enabled())
	assert.NotPanics(t, func() {
		a.Speak("hello", model.RoleBuyer)
		a.Close()
	})
}
