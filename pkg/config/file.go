package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cuttingtool/toolinspect/pkg/standards"
	"github.com/cuttingtool/toolinspect/pkg/utils/ptr"
)

const (
	DefaultListenAddr = "127.0.0.1:8620"
	apiKeyEnv         = "GEMINI_API_KEY"
	apiKeyEnvFallback = "API_KEY"
)

var (
	defaultFileConfig = &RawFileConfig{
		ListenAddr:                ptr.To(DefaultListenAddr),
		StandardsPath:             ptr.To(""),
		DefaultMaterial:           ptr.To(standards.DefaultMaterial),
		Model:                     ptr.To("gemini-2.5-flash"),
		Temperature:               ptr.To(float32(0.4)),
		RecommendationTemperature: ptr.To(float32(0.7)),
		MaxImages:                 ptr.To(3),
		HistoryLimit:              ptr.To(50),
		HistoryPruneCron:          ptr.To("@daily"),
		HistoryRetentionDays:      ptr.To(0),
	}
)

// DefaultDir is where the config file and database live unless configured
// otherwise.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "toolinspect")
}

// DefaultPath is the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.json")
}

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

type RawFileConfig struct {
	ListenAddr                *string  `json:"listenAddr,omitempty"`
	DatabasePath              *string  `json:"databasePath,omitempty"`
	StandardsPath             *string  `json:"standardsPath,omitempty"`
	DefaultMaterial           *string  `json:"defaultMaterial,omitempty"`
	Model                     *string  `json:"model,omitempty"`
	Temperature               *float32 `json:"temperature,omitempty"`
	RecommendationTemperature *float32 `json:"recommendationTemperature,omitempty"`
	MaxImages                 *int     `json:"maxImages,omitempty"`
	HistoryLimit              *int     `json:"historyLimit,omitempty"`
	HistoryPruneCron          *string  `json:"historyPruneCron,omitempty"`
	HistoryRetentionDays      *int     `json:"historyRetentionDays,omitempty"`
	APIKey                    *string  `json:"apiKey,omitempty"`
}

func (f *File) raw() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) ListenAddr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().ListenAddr, *defaultFileConfig.ListenAddr)
}

// DatabasePath defaults to history.db next to the config file.
func (f *File) DatabasePath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if p := ptr.Deref(f.raw().DatabasePath, ""); p != "" {
		return p
	}
	dir := DefaultDir()
	if f.filepath != "" {
		dir = filepath.Dir(f.filepath)
	}
	return filepath.Join(dir, "history.db")
}

func (f *File) StandardsPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().StandardsPath, *defaultFileConfig.StandardsPath)
}

func (f *File) DefaultMaterial() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if m := ptr.Deref(f.raw().DefaultMaterial, ""); m != "" {
		return m
	}
	return *defaultFileConfig.DefaultMaterial
}

func (f *File) Model() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().Model, *defaultFileConfig.Model)
}

func (f *File) Temperature() float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().Temperature, *defaultFileConfig.Temperature)
}

func (f *File) RecommendationTemperature() float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().RecommendationTemperature, *defaultFileConfig.RecommendationTemperature)
}

func (f *File) MaxImages() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := ptr.Deref(f.raw().MaxImages, *defaultFileConfig.MaxImages)
	if n <= 0 {
		return *defaultFileConfig.MaxImages
	}
	return n
}

func (f *File) HistoryLimit() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := ptr.Deref(f.raw().HistoryLimit, *defaultFileConfig.HistoryLimit)
	if n <= 0 {
		return *defaultFileConfig.HistoryLimit
	}
	return n
}

func (f *File) HistoryPruneCron() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().HistoryPruneCron, *defaultFileConfig.HistoryPruneCron)
}

func (f *File) HistoryRetentionDays() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().HistoryRetentionDays, *defaultFileConfig.HistoryRetentionDays)
}

func (f *File) APIKey() string {
	for _, env := range []string{apiKeyEnv, apiKeyEnvFallback} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().APIKey, "")
}

func (f *File) SetDefaultMaterial(m string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().DefaultMaterial = &m
}

func (f *File) SetHistoryPruneCron(spec string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().HistoryPruneCron = &spec
}

func (f *File) SetHistoryRetentionDays(days int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().HistoryRetentionDays = &days
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	if err := os.MkdirAll(filepath.Dir(f.filepath), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", f.filepath)
	}

	// The file may hold an API key.
	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// Effective is the resolved configuration with the API key redacted, as
// shown by GET /config.
type Effective struct {
	ListenAddr                string  `json:"listenAddr"`
	DatabasePath              string  `json:"databasePath"`
	StandardsPath             string  `json:"standardsPath"`
	DefaultMaterial           string  `json:"defaultMaterial"`
	Model                     string  `json:"model"`
	Temperature               float32 `json:"temperature"`
	RecommendationTemperature float32 `json:"recommendationTemperature"`
	MaxImages                 int     `json:"maxImages"`
	HistoryLimit              int     `json:"historyLimit"`
	HistoryPruneCron          string  `json:"historyPruneCron"`
	HistoryRetentionDays      int     `json:"historyRetentionDays"`
	APIKeySet                 bool    `json:"apiKeySet"`
}

func NewEffective(c Config) Effective {
	return Effective{
		ListenAddr:                c.ListenAddr(),
		DatabasePath:              c.DatabasePath(),
		StandardsPath:             c.StandardsPath(),
		DefaultMaterial:           c.DefaultMaterial(),
		Model:                     c.Model(),
		Temperature:               c.Temperature(),
		RecommendationTemperature: c.RecommendationTemperature(),
		MaxImages:                 c.MaxImages(),
		HistoryLimit:              c.HistoryLimit(),
		HistoryPruneCron:          c.HistoryPruneCron(),
		HistoryRetentionDays:      c.HistoryRetentionDays(),
		APIKeySet:                 c.APIKey() != "",
	}
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"listenAddr":       f.ListenAddr(),
		"databasePath":     f.DatabasePath(),
		"standardsPath":    f.StandardsPath(),
		"defaultMaterial":  f.DefaultMaterial(),
		"model":            f.Model(),
		"maxImages":        f.MaxImages(),
		"historyLimit":     f.HistoryLimit(),
		"historyPruneCron": f.HistoryPruneCron(),
		"apiKeySet":        f.APIKey() != "",
	}
}
