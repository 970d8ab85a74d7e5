package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	goplugin "github.com/hashicorp/go-plugin"
)

var HandshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TASKFORGE_PLUGIN",
	MagicCookieValue: "taskforge-validator",
}

var PluginMap = map[string]goplugin.Plugin{
	ValidatorName: &ValidatorPlugin{},
}

// Serve runs v as a plugin binary. It blocks until the host disconnects.
func Serve(v policy.Validator) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]goplugin.Plugin{
			ValidatorName: &ValidatorPlugin{Impl: v},
		},
	})
}

// Loader starts validator binaries and keeps their processes until Cleanup.
type Loader struct {
	mu      sync.Mutex
	plugins map[string]*goplugin.Client
}

func NewLoader() *Loader {
	return &Loader{
		plugins: make(map[string]*goplugin.Client),
	}
}

// Load launches the binary at path and returns its validator. Loading the
// same path twice reuses the running process.
func (l *Loader) Load(path string) (policy.Validator, error) {
	absPath, err := checkBinary(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	client, ok := l.plugins[absPath]
	if !ok {
		client = goplugin.NewClient(&goplugin.ClientConfig{
			HandshakeConfig: HandshakeConfig,
			Plugins:         PluginMap,
			Cmd:             exec.Command(absPath),
			AllowedProtocols: []goplugin.Protocol{
				goplugin.ProtocolNetRPC,
			},
		})
	}

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		delete(l.plugins, absPath)
		return nil, fmt.Errorf("failed to create plugin client: %w", err)
	}

	raw, err := rpcClient.Dispense(ValidatorName)
	if err != nil {
		client.Kill()
		delete(l.plugins, absPath)
		return nil, fmt.Errorf("failed to dispense validator: %w", err)
	}

	v, ok := raw.(policy.Validator)
	if !ok {
		client.Kill()
		delete(l.plugins, absPath)
		return nil, fmt.Errorf("plugin %s does not serve a validator", absPath)
	}

	l.plugins[absPath] = client
	return v, nil
}

// Cleanup kills every plugin process started by this loader.
func (l *Loader) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, client := range l.plugins {
		client.Kill()
		delete(l.plugins, path)
	}
}

func checkBinary(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid plugin path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("plugin not found: %s", absPath)
		}
		return "", fmt.Errorf("cannot access plugin: %w", err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("plugin path is a directory: %s", absPath)
	}

	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return "", fmt.Errorf("plugin is not executable: %s", absPath)
	}
	return absPath, nil
}
