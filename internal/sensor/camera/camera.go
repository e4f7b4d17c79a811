// Package camera captures still photos from a local video device.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"sensorlog/internal/logger"
)

// ErrUnavailable means no video device could be opened.
var ErrUnavailable = errors.New("camera unavailable")

// Camera grabs single frames from a video device and stores them as JPEG.
type Camera struct {
	device int
	photos *PhotoStore
	logger *logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// Open tries to open device. A negative device or a failed open yields a
// camera whose Available reports false.
func Open(device int, photos *PhotoStore, logger *logger.Logger) *Camera {
	c := &Camera{device: device, photos: photos, logger: logger, now: time.Now}
	if device < 0 {
		return c
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		logger.Warning("Could not open camera %d: %v", device, err)
		return c
	}
	c.capture = capture
	logger.Info("Camera %d opened", device)
	return c
}

// Available reports whether a device is open.
func (c *Camera) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

// Snapshot captures one frame and returns the path of the saved JPEG.
func (c *Camera) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return "", ErrUnavailable
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		return "", fmt.Errorf("failed to read frame from camera %d", c.device)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())

	return c.photos.Save(frame, c.now(), fmt.Sprintf("camera%d", c.device))
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
