package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Voice       VoiceConfig       `yaml:"voice"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"` // http, eino
	APIURL      string        `yaml:"api_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

type NegotiationConfig struct {
	MaxRounds         int           `yaml:"max_rounds"`
	AutoRounds        int           `yaml:"auto_rounds"` // auto_negotiate 未传 rounds 时的默认值
	TurnPause         time.Duration `yaml:"turn_pause"`
	BuyerName         string        `yaml:"buyer_name"`
	BuyerPersonality  string        `yaml:"buyer_personality"`
	SellerName        string        `yaml:"seller_name"`
	SellerPersonality string        `yaml:"seller_personality"`
}

type VoiceConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Rate        int      `yaml:"rate"`
	Volume      float64  `yaml:"volume"`
	TTSCommand  []string `yaml:"tts_command"` // 支持 {voice} {rate} {volume} {amplitude} {text} 占位符，无 {text} 时文本追加到末尾
	STTCommand  []string `yaml:"stt_command"` // 支持 {timeout} 占位符，识别结果从 stdout 读取
	QueueSize   int      `yaml:"queue_size"`
	BuyerVoice  string   `yaml:"buyer_voice"`
	SellerVoice string   `yaml:"seller_voice"`
	Workers     int      `yaml:"workers"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config.yaml"
		}
		cfg = Load(configPath)
	})
	return cfg
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5000",
			Mode: "debug",
		},
		LLM: LLMConfig{
			Provider:    "http",
			APIURL:      "https://api.together.xyz/v1",
			Model:       "meta-llama/Meta-Llama-3-8B-Instruct-Lite",
			MaxTokens:   200,
			Temperature: 0.7,
			TopP:        0.9,
			Timeout:     30 * time.Second,
		},
		Negotiation: NegotiationConfig{
			MaxRounds:         10,
			AutoRounds:        5,
			TurnPause:         2 * time.Second,
			BuyerName:         "Alex the Buyer",
			BuyerPersonality:  "The Smooth Diplomat: Wins with charm, collaboration, and win-win pitches",
			SellerName:        "Maria the Seller",
			SellerPersonality: "Professional and value-focused merchant",
		},
		Voice: VoiceConfig{
			Enabled:     false,
			Rate:        150,
			Volume:      0.9,
			TTSCommand:  []string{"espeak-ng", "-v", "{voice}", "-s", "{rate}", "-a", "{amplitude}"},
			BuyerVoice:  "en-us+m3",
			SellerVoice: "en-us+f3",
			Workers:     1,
			QueueSize:   32,
		},
	}
}

// Load 读取配置文件并叠加环境变量，文件不存在时使用默认值
func Load(path string) *Config {
	config := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			klog.Warningf("解析配置文件失败，使用默认配置: path=%s, err=%v", path, err)
		}
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("LLAMA_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = apiKey
	}
	if apiURL := os.Getenv("LLM_API_URL"); apiURL != "" {
		config.LLM.APIURL = apiURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		config.Server.Port = port
	}
	if enabled := os.Getenv("VOICE_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Voice.Enabled = v
		}
	}
	if rounds := os.Getenv("MAX_ROUNDS"); rounds != "" {
		if v, err := strconv.Atoi(rounds); err == nil && v > 0 {
			config.Negotiation.MaxRounds = v
		}
	}

	config.LLM.APIURL = strings.TrimSuffix(config.LLM.APIURL, "/chat/completions")
	config.LLM.APIURL = strings.TrimSuffix(config.LLM.APIURL, "/")
	if config.Negotiation.MaxRounds <= 0 {
		config.Negotiation.MaxRounds = 10
	}

	return config
}
