// Package system holds host-level helpers: file limits, worker sizing,
// memory reporting, file lookup and encoder detection.
package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// File extensions by media kind, lower case.
var (
	PDFExtensions   = []string{".pdf"}
	ImageExtensions = []string{".jpg", ".jpeg", ".png"}
	AudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}
	VideoExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".avi"}
)

// InitResourceLimits raises the open file limit. Every video resource keeps
// an ffmpeg pipe open for the whole session.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not read the open file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not raise the open file limit: %v", err)
	} else {
		fmt.Printf("[*] Open file limit raised to %d\n", rLimit.Cur)
	}
}

// DefaultWorkers is the number of logical cores, falling back to GOMAXPROCS.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Memory is a snapshot of host and process memory in bytes.
type Memory struct {
	Total       uint64
	Available   uint64
	UsedPercent float64
	ProcessRSS  uint64
}

// MemoryReport samples memory usage. Missing process figures stay 0.
func MemoryReport() (Memory, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, fmt.Errorf("reading virtual memory: %w", err)
	}
	m := Memory{
		Total:       vm.Total,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			m.ProcessRSS = info.RSS
		}
	}
	return m, nil
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FindLatest returns the most recently modified file in dir with one of
// the extensions. A file path searches its directory.
func FindLatest(path string, exts []string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	dir := path
	if !fi.IsDir() {
		dir = filepath.Dir(path)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files found in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

// ListFiles returns the files in dir with one of the extensions, sorted by
// name. A file path is returned as the only entry.
func ListFiles(path string, exts []string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && hasExtension(entry.Name(), exts) {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	// ReadDir already sorts by file name
	return paths, nil
}

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg offers one.
//
// Priorities:
// 1. MacOS (VideoToolbox)
// 2. NVIDIA (NVENC)
// 3. Software (libx264)
func GetBestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}
