// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package scan

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cgsec/digler/internal/block"
	"github.com/cgsec/digler/internal/carve"
	"github.com/cgsec/digler/internal/disk"
	"github.com/cgsec/digler/internal/env"
	"github.com/cgsec/digler/internal/format"
	"github.com/cgsec/digler/internal/fs"
	"github.com/cgsec/digler/internal/logger"
	"github.com/cgsec/digler/pkg/dfxml"
	"github.com/cgsec/digler/pkg/pbar"
	fmtutil "github.com/cgsec/digler/pkg/util/format"
)

type Options struct {
	DumpDir        string
	ReportFile     string
	MaxScanSize    uint64
	ScanBufferSize uint64
	BlockSize      uint64
	MaxFileSize    uint64
	DisableLog     bool
	FileExt        []string
	Plugins        []string
	LogLevel       logger.Level
}

func Scan(filePath string, opts Options) error {
	partitions, err := DiscoverPartitions(filePath)
	if err != nil {
		return err
	}

	for _, p := range partitions {
		if err := ScanPartition(&p, filePath, opts); err != nil {
			return err
		}
	}
	return nil
}

func absPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

// buildRegistry returns the built-in Detector set, narrowed to exts when
// non-empty, plus every Detector exported by opts.Plugins.
func buildRegistry(exts []string, plugins []string) (*format.Registry, error) {
	reg := format.NewRegistry()

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	for _, d := range format.Detectors() {
		if len(want) == 0 || want[strings.ToLower(d.Info().Ext)] {
			if err := reg.Register(d); err != nil {
				return nil, err
			}
		}
	}

	loaded, err := format.LoadPlugins(plugins...)
	if err != nil {
		return nil, err
	}
	for _, d := range loaded {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func ScanPartition(p *disk.Partition, filePath string, opts Options) error {
	f, err := fs.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	imgInfo, err := f.Stat()
	if err != nil {
		return err
	}

	session := GenSessionID()

	reportFileName := opts.ReportFile
	if reportFileName == "" {
		reportFileName = fmt.Sprintf("report_%s.xml", session)
	}

	outFile, err := os.Create(reportFileName)
	if err != nil {
		return err
	}
	defer outFile.Close()

	reportFileWriter := dfxml.NewDFXMLWriter(outFile)
	defer reportFileWriter.Close()

	err = reportFileWriter.WriteHeader(dfxml.DFXMLHeader{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              env.AppName,
			Version:              env.Version,
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: filePath,
			SectorSize:    int(p.BlockSize),
			ImageSize:     uint64(imgInfo.Size()),
		},
	})
	if err != nil {
		return err
	}

	var logFilePath string
	if !opts.DisableLog {
		logFilePath = absPath(filepath.Join(opts.DumpDir, session) + ".log")
	}

	registry, err := buildRegistry(opts.FileExt, opts.Plugins)
	if err != nil {
		return err
	}

	fmt.Println("[INFO] Starting scanning operation...")
	fmt.Printf("[INFO] Source: \t%s\n", absPath(filePath))
	if opts.DumpDir != "" {
		fmt.Printf("[INFO] Destination: \t%s\n", absPath(opts.DumpDir))
	}

	outLog := "disabled"
	if !opts.DisableLog {
		outLog = logFilePath
	}
	fmt.Printf("[INFO] Output Log: \t%s\n", outLog)

	logger, logFile, err := setupLogger(logFilePath, opts.LogLevel)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	blockSize := uint32(p.BlockSize)
	if opts.BlockSize != 0 {
		blockSize = uint32(opts.BlockSize)
	}

	src, err := block.NewFileSource(f, blockSize)
	if err != nil {
		return err
	}

	size := p.Size
	if opts.MaxScanSize != 0 && opts.MaxScanSize < size {
		size = opts.MaxScanSize
	}
	region, err := block.NewOffsetSource(src, p.Offset, size)
	if err != nil {
		return err
	}

	dumpDir := opts.DumpDir
	if dumpDir == "" {
		dumpDir = session + "-dump"
	}
	sink, err := carve.NewDirSink(dumpDir)
	if err != nil {
		return err
	}

	carveOpts := carve.Options{
		Window:      opts.ScanBufferSize,
		MaxFileSize: opts.MaxFileSize,
	}
	c := carve.NewCarver(region, registry, sink, carveOpts)

	// A first interrupt aborts the in-flight recovery and stops the scan
	// cleanly; a second one falls through to the default handler.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	start := time.Now()
	filesFound := 0
	var totalDataSize uint64

	progress := pbar.NewProgressBarState(int64(size))
	c.Scan(ctx)(func(a carve.Artifact) bool {
		filesFound++
		totalDataSize += a.Size

		progress.ProcessedBytes = int64(a.Offset + a.Size)
		progress.FilesFound = filesFound
		progress.Render(false)

		err := reportFileWriter.WriteFileObject(dfxml.FileObject{
			Filename: a.Name,
			FileSize: a.Size,
			ByteRuns: dfxml.ByteRuns{
				Runs: []dfxml.ByteRun{{
					Offset:    a.Offset,
					ImgOffset: p.Offset + a.Offset,
					Length:    a.Size,
				}},
			},
		})
		if err != nil {
			logger.Error("unable to write index entry", "err", err)
		}
		return true
	})
	if err := c.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	progress.Render(true)
	progress.Finish()

	fmt.Println()
	fmt.Printf("[INFO] Scan completed!\n")
	fmt.Printf("[INFO] Files found: \t%d\n", filesFound)
	fmt.Printf("[INFO] Total data: \t%s\n", fmtutil.FormatBytes(int64(totalDataSize)))
	fmt.Printf("[INFO] Duration: \t%s\n", FormatDurationHMS(time.Since(start)))
	fmt.Printf("[INFO] Report saved to: \t%s\n", absPath(reportFileName))
	if !opts.DisableLog {
		fmt.Printf("[INFO] Detailed scan log: \t%s\n", logFilePath)
	}
	return nil
}

func DiscoverPartitions(path string) ([]disk.Partition, error) {
	imgFile, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %q: %w", path, err)
	}
	defer imgFile.Close()

	var firstSector [512]byte
	_, err = imgFile.ReadAt(firstSector[:], 0)
	if err != nil {
		return nil, err
	}

	// Try to parse the first sector as an MBR
	mbr, err := disk.ParseMBR(firstSector[:])
	if err == nil {
		mbrPartitions, err := GetMBRPartitions(imgFile, mbr)
		if err != nil {
			return nil, err
		}
		if len(mbrPartitions) > 0 {
			return mbrPartitions, nil
		}
	}

	// TODO: if was unable to determine the partitions,
	// Maybe, try to locate partition boundaries using FAT signature, etc?

	finfo, err := imgFile.Stat()
	if err != nil {
		return nil, err
	}

	return []disk.Partition{
		fullDiskPartition(uint64(finfo.Size())),
	}, nil
}

func fullDiskPartition(diskSize uint64) disk.Partition {
	return disk.Partition{
		FSType:    1,
		Num:       0,
		Offset:    0,
		Size:      diskSize,
		BlockSize: disk.DefaultBlocksize,
	}
}

func GetMBRPartitions(imgFile fs.File, mbr *disk.MBR) ([]disk.Partition, error) {
	// protective MBR for GPT disks
	if p := mbr.PartitionEntries[0]; p.PartitionType == disk.PartitionTypeGPT {
		offset := int64(p.ReadStartLBA()) * disk.DefaultBlocksize
		size := uint64(binary.LittleEndian.Uint32(p.TotalSectors[:])) * uint64(disk.DefaultBlocksize)

		// TODO: discover sector size
		return []disk.Partition{
			{
				FSType:    0,
				Num:       0,
				Offset:    uint64(offset),
				BlockSize: disk.DefaultBlocksize,
				Size:      size,
			},
		}, nil
	}

	partitions := make([]disk.Partition, 0, len(mbr.PartitionEntries))
	for n, p := range mbr.PartitionEntries {
		switch p.PartitionType {
		case disk.PartitionTypeFAT12,
			disk.PartitionTypeFAT16LessThan32MB,
			disk.PartitionTypeFAT16GreaterThan32MB,
			disk.PartitionTypeFAT16LBA,
			disk.PartitionTypeFAT32LBA,
			disk.PartitionTypeFAT32CHS:

			offset := int64(p.ReadStartLBA()) * disk.DefaultBlocksize

			var buf [512]byte
			_, err := imgFile.ReadAt(buf[:], offset)
			if err != nil {
				continue
			}

			fatSector, err := disk.ReadFatBootSectorFrom(buf[:])
			if err == nil {
				partitions = append(partitions, disk.Partition{
					FSType:    0,
					Num:       n,
					Offset:    uint64(offset),
					BlockSize: uint32(fatSector.SectorSize),
					Size:      uint64(binary.LittleEndian.Uint32(p.TotalSectors[:])) * uint64(fatSector.SectorSize),
				})
			}
		}
	}
	return partitions, nil
}

// GenSessionID creates a unique file name for a scan session.
// The format is "YYYYMMDD_HHMMSS".
func GenSessionID() string {
	now := time.Now()
	return now.Format("20060102_150405")
}

// FormatDurationHMS formats a time.Duration into HH:MM:SS string.
// It handles durations that might be less than an hour or greater than 24 hours.
// Durations under one second are returned as fractional seconds (e.g. "0.42s").
func FormatDurationHMS(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	totalSeconds := int64(d.Seconds())

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// slogLevel maps the package's own four-level scheme onto slog's, since
// slog.Level and logger.Level are distinct defined types with different
// zero-point conventions (slog centers INFO on 0; logger.Level counts up
// from DEBUG=0).
func slogLevel(l logger.Level) slog.Level {
	switch l {
	case logger.DebugLevel:
		return slog.LevelDebug
	case logger.WarnLevel:
		return slog.LevelWarn
	case logger.ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger initializes a new slog.Logger that writes to a specified file or discards output.
func setupLogger(logFilePath string, minLevel logger.Level) (*slog.Logger, *os.File, error) {
	var writer io.Writer
	var file *os.File

	if logFilePath == "" {
		writer = io.Discard
	} else {
		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %q: %w", logDir, err)
		}

		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %q: %w", logFilePath, err)
		}
		writer = f
		file = f
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level:     slogLevel(minLevel),
		AddSource: true,
	})

	logger := slog.New(handler)
	return logger, file, nil
}
