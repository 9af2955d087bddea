package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/hand"
)

// IdleTimeout stops the service after this long without a frame.
const IdleTimeout = 30 * time.Second

// DefaultResponseTimeout bounds a frame exchange when Config leaves it unset.
const DefaultResponseTimeout = 2 * time.Second

const scriptName = "mediapipe_service.py"

// ErrServiceNotFound is returned when no landmark service script exists.
var ErrServiceNotFound = errors.New(scriptName + " not found")

// ErrResponseTimeout is returned when the service does not answer a frame in
// time. The service is killed and restarted on the next frame.
var ErrResponseTimeout = errors.New("mediapipe service response timed out")

// MediaPipeDetector implements Detector using a MediaPipe subprocess.
// Frames go to its stdin as a 4-byte big-endian length followed by JPEG
// bytes; each frame is answered with one JSON line on stdout.
type MediaPipeDetector struct {
	config    Config
	argv      []string
	timeout   time.Duration
	log       logrus.FieldLogger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The subprocess is started lazily on first detection.
func NewMediaPipeDetector(config Config, log logrus.FieldLogger) (*MediaPipeDetector, error) {
	argv, err := serviceCommand(config)
	if err != nil {
		return nil, err
	}

	timeout := config.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}

	return &MediaPipeDetector{
		config:  config,
		argv:    argv,
		timeout: timeout,
		log:     log,
	}, nil
}

func serviceCommand(config Config) ([]string, error) {
	if len(config.Command) > 0 {
		return config.Command, nil
	}

	script := config.Script
	if script == "" {
		script = findMediaPipeScript()
	} else if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, script)
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}

	python := findVenvPython()
	if python == "" {
		python = "python3"
	}

	maxHands := config.MaxHands
	if maxHands <= 0 {
		maxHands = 1
	}

	return []string{
		python, script,
		"--max-hands", strconv.Itoa(maxHands),
		"--min-detection-confidence", strconv.FormatFloat(config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(config.MinTrackingConf, 'f', -1, 64),
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]hand.Landmarks, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return d.detectEncoded(buf.GetBytes())
}

func (d *MediaPipeDetector) detectEncoded(data []byte) ([]hand.Landmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	hands, err := d.exchange(data)
	if err != nil {
		// A half-written frame leaves the stream out of sync; restart on the
		// next call.
		d.shutdown()
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

type exchangeResult struct {
	hands []hand.Landmarks
	err   error
}

// exchange sends one frame and waits at most d.timeout for the answer. On
// timeout the service is killed so the pending read and write return.
func (d *MediaPipeDetector) exchange(data []byte) ([]hand.Landmarks, error) {
	done := make(chan exchangeResult, 1)
	stdin, stdout := d.stdin, d.stdout
	go func() {
		hands, err := roundTrip(stdin, stdout, data, d.log)
		done <- exchangeResult{hands, err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.hands, res.err
	case <-timer.C:
		if d.cmd != nil && d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		return nil, fmt.Errorf("%w after %s", ErrResponseTimeout, d.timeout)
	}
}

func roundTrip(w io.Writer, r *bufio.Reader, data []byte, log logrus.FieldLogger) ([]hand.Landmarks, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return decodeResponse(line, log)
}

// Close shuts down the subprocess.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.argv[0], d.argv[1:]...)
	d.cmd.Env = append(os.Environ(), d.config.Env...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.log.WithField("command", d.argv[0]).Debug("mediapipe service started")

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			d.log.WithError(err).Debug("idle mediapipe service exited")
		}
	})
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".mudra", "scripts", scriptName),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents one hand in a service response.
type jsonHand struct {
	Points     []hand.Point3D `json:"points"`
	Handedness string         `json:"handedness"`
	Score      float64        `json:"score"`
}

type jsonResponse struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error,omitempty"`
}

// decodeResponse parses a service line. Hands without exactly 21 points are
// dropped rather than padded.
func decodeResponse(line []byte, log logrus.FieldLogger) ([]hand.Landmarks, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", response.Error)
	}

	result := make([]hand.Landmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		lm := hand.Landmarks{
			Points:     h.Points,
			Handedness: h.Handedness,
			Score:      h.Score,
		}
		if err := lm.Validate(); err != nil {
			log.WithError(err).Debug("dropping malformed hand")
			continue
		}
		result = append(result, lm)
	}

	return result, nil
}
