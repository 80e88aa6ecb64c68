package commands

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/mirubo/pixpal/cmd/pixpal/internal/config"
	"github.com/mirubo/pixpal/pkg/convo"
	"github.com/mirubo/pixpal/pkg/history"
	"github.com/mirubo/pixpal/pkg/talk"
)

// ServiceConfig is the per-context engine.yaml schema.
type ServiceConfig struct {
	APIKey        string            `yaml:"api_key"`
	Endpoint      string            `yaml:"endpoint"`
	Model         string            `yaml:"model"`
	Target        string            `yaml:"target"`
	ToolSupport   *bool             `yaml:"tool_support"`
	NoDataTimeout string            `yaml:"no_data_timeout"`
	PollInterval  string            `yaml:"poll_interval"`
	Headers       map[string]string `yaml:"headers"`
	SystemPrompt  string            `yaml:"system_prompt"`
	Generation    *GenerationConfig `yaml:"generation"`
	Params        map[string]any    `yaml:"params"`
	HistoryDir    string            `yaml:"history_dir"`
	CapturesDir   string            `yaml:"captures_dir"`
	ServeAddr     string            `yaml:"serve_addr"`
}

// GenerationConfig mirrors talk.GenerationParams for engine.yaml.
type GenerationConfig struct {
	Temperature     float64  `yaml:"temperature"`
	TopP            float64  `yaml:"top_p"`
	TopK            int      `yaml:"top_k"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	StopSequences   []string `yaml:"stop_sequences"`
}

// loadServiceConfig loads engine.yaml from the resolved context directory.
func loadServiceConfig(contextName string) (*ServiceConfig, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	contextDir, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context set; use -c flag or 'pixpal config use-context <name>'")
		}
		return nil, err
	}
	svc, err := config.LoadService[ServiceConfig](contextDir, "engine")
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return svc, nil
}

// engineOptions converts the service config into engine options.
func engineOptions(svc *ServiceConfig, log *slog.Logger) ([]talk.Option, error) {
	if svc.APIKey == "" {
		return nil, fmt.Errorf("engine api_key not configured; run: pixpal config set <context> engine api_key <key>")
	}

	opts := []talk.Option{
		talk.WithCredential(svc.APIKey),
		talk.WithLogger(log),
	}
	if svc.Endpoint != "" {
		opts = append(opts, talk.WithEndpoint(svc.Endpoint))
	}
	if svc.Model != "" {
		opts = append(opts, talk.WithModel(svc.Model))
	}
	if svc.Target != "" {
		opts = append(opts, talk.WithTarget(svc.Target))
	}
	if svc.ToolSupport != nil {
		opts = append(opts, talk.WithToolSupport(*svc.ToolSupport))
	}
	if svc.NoDataTimeout != "" {
		d, err := time.ParseDuration(svc.NoDataTimeout)
		if err != nil {
			return nil, fmt.Errorf("engine no_data_timeout: %w", err)
		}
		opts = append(opts, talk.WithNoDataTimeout(d))
	}
	if svc.PollInterval != "" {
		d, err := time.ParseDuration(svc.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("engine poll_interval: %w", err)
		}
		opts = append(opts, talk.WithPollInterval(d))
	}
	if len(svc.Headers) > 0 {
		opts = append(opts, talk.WithHeaders(svc.Headers))
	}
	if svc.SystemPrompt != "" {
		opts = append(opts, talk.WithSystemPrompt(svc.SystemPrompt))
	}
	if g := svc.Generation; g != nil {
		opts = append(opts, talk.WithGenerationParams(&talk.GenerationParams{
			Temperature:     g.Temperature,
			TopP:            g.TopP,
			TopK:            g.TopK,
			MaxOutputTokens: g.MaxOutputTokens,
			StopSequences:   g.StopSequences,
		}))
	}
	if len(svc.Params) > 0 {
		opts = append(opts, talk.WithCustomParams(svc.Params))
	}
	return opts, nil
}

// openArchive opens the badger-backed archive configured by
// history_dir. Returns nil when no directory is configured.
func openArchive(svc *ServiceConfig) (*history.Archive, error) {
	if svc.HistoryDir == "" {
		return nil, nil
	}
	store, err := history.NewBadger(history.BadgerOptions{Dir: svc.HistoryDir})
	if err != nil {
		return nil, fmt.Errorf("open history at %s: %w", svc.HistoryDir, err)
	}
	return history.NewArchive(store), nil
}

// imageExts are the still formats the directory capturer recognizes.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// dirCapturer serves vision directives from a directory of stills: the
// newest recognized image wins. A non-empty source selects a
// subdirectory when one exists, so one tree can hold multiple cameras.
func dirCapturer(dir string, log *slog.Logger) talk.CaptureFunc {
	return func(_ context.Context, source string) (*convo.Blob, error) {
		root := dir
		if source != "" {
			sub := filepath.Join(dir, filepath.Base(source))
			if st, err := os.Stat(sub); err == nil && st.IsDir() {
				root = sub
			}
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read captures dir: %w", err)
		}

		var (
			newest    string
			newestExt string
			newestAt  time.Time
		)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if !imageExts[ext] {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if newest == "" || info.ModTime().After(newestAt) {
				newest = filepath.Join(root, e.Name())
				newestExt = ext
				newestAt = info.ModTime()
			}
		}
		if newest == "" {
			return nil, fmt.Errorf("no still image in %s", root)
		}

		data, err := os.ReadFile(newest)
		if err != nil {
			return nil, fmt.Errorf("read still: %w", err)
		}
		mimeType := mime.TypeByExtension(newestExt)
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		log.Debug("capture: serving still", "path", newest, "bytes", len(data))
		return &convo.Blob{MIMEType: mimeType, Data: data}, nil
	}
}
