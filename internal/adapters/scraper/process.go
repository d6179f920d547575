package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

const (
	stderrLogLimit = 2000
	waitDelay      = 2 * time.Second
)

var ErrScriptMissing = errors.New("script path not configured")

// Process runs an external check-in or statistics script. The script gets one
// JSON argument and prints a JSON object keyed by user id on stdout.
type Process struct {
	Bin         string
	SignScript  string
	StatsScript string
	Timeout     time.Duration
	log         *logger.ClassLogger
}

func New(bin, signScript, statsScript string, timeout time.Duration) *Process {
	if bin == "" {
		bin = "node"
	}
	p := &Process{Bin: bin, SignScript: signScript, StatsScript: statsScript, Timeout: timeout}
	p.log = logger.NewLogger(p, nil)
	return p
}

type checkinPayload struct {
	Targets   model.Targets   `json:"targets"`
	UserModes map[string]bool `json:"userModes"`
}

type statsPayload struct {
	Targets model.Targets `json:"targets"`
	Days    int           `json:"days"`
}

func (p *Process) Checkin(ctx context.Context, targets model.Targets, modes map[string]bool) (model.Results, error) {
	if modes == nil {
		modes = map[string]bool{}
	}
	return p.run(ctx, p.SignScript, checkinPayload{Targets: targets, UserModes: modes})
}

func (p *Process) Stats(ctx context.Context, targets model.Targets, days int) (model.Results, error) {
	return p.run(ctx, p.StatsScript, statsPayload{Targets: targets, Days: days})
}

func (p *Process) run(ctx context.Context, script string, payload interface{}) (model.Results, error) {
	if script == "" {
		return nil, ErrScriptMissing
	}
	arg, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Bin, script, string(arg))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	started := time.Now()
	err = cmd.Run()
	if stderr.Len() > 0 {
		p.log.JustLog(fmt.Sprintf("%s stderr:\n%s", script, utils.TruncateForLog(stderr.String(), stderrLogLimit)))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s timed out after %s: %w", script, time.Since(started).Round(time.Second), ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", script, err, strings.TrimSpace(stderr.String()))
	}

	results, err := decodeResults(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", script, err)
	}
	p.log.JustLog(fmt.Sprintf("%s finished in %s for %d users", script, time.Since(started).Round(time.Millisecond), len(results)))
	return results, nil
}

// decodeResults parses the last JSON object on stdout; scripts may print
// diagnostics before it.
func decodeResults(out []byte) (model.Results, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("empty output")
	}
	var results model.Results
	if err := json.Unmarshal(out, &results); err == nil {
		return results, nil
	}
	lines := bytes.Split(out, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		if err := json.Unmarshal(line, &results); err == nil {
			return results, nil
		}
	}
	return nil, fmt.Errorf("unparseable output: %s", utils.TruncateForLog(string(out), 200))
}
