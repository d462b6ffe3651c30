package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"qrscanner/internal/logger"
	"qrscanner/internal/model"
	"qrscanner/internal/repository/sqlite"
	"qrscanner/internal/service/detector"
)

func main() {
	imagesDir := flag.String("images", "images", "Directory containing images")
	dbPath := flag.String("db", "", "Record decoded payloads into this scan history database")
	placeholder := flag.String("placeholder", "Could not read", "Text for codes without readable content")
	flag.Parse()

	det := detector.New(detector.NewZXingDecoder(), logger.NewDiscard())

	var repo *sqlite.ScanRepository
	if *dbPath != "" {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		repo = sqlite.NewScanRepository(db)
	}

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	sessionID := uuid.NewString()
	var decoded, skipped int
	var totalSize int64

	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if file.IsDir() || (ext != ".jpg" && ext != ".jpeg" && ext != ".png") {
			continue
		}

		path := filepath.Join(*imagesDir, file.Name())
		payloads, size, err := decodeFile(det, path)
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}
		totalSize += size

		if len(payloads) == 0 {
			fmt.Printf("%s: no QR code\n", file.Name())
			continue
		}

		for _, p := range payloads {
			text := p.Value(*placeholder)
			fmt.Printf("%s: %s\n", file.Name(), text)
			decoded++

			if repo == nil {
				continue
			}
			scan := &model.Scan{
				ID:        uuid.NewString(),
				SessionID: sessionID,
				Payload:   text,
				Format:    p.Format,
				Sink:      "decodedir",
				Camera:    file.Name(),
				ScannedAt: time.Now(),
			}
			if err := repo.Insert(scan); err != nil {
				log.Printf("Failed to record %s: %v", file.Name(), err)
			}
		}
	}

	fmt.Printf("\nDecoded %d codes from %s of images", decoded, humanize.Bytes(uint64(totalSize)))
	if skipped > 0 {
		fmt.Printf(", skipped %d files", skipped)
	}
	fmt.Println()

	if repo != nil {
		if count, err := repo.Count(); err == nil {
			fmt.Printf("Scan history now holds %s scans (session %s)\n", humanize.Comma(int64(count)), sessionID)
		}
	}
}

func decodeFile(det *detector.Detector, path string) ([]detector.Payload, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	payloads, err := det.DecodeImage(img)
	if err != nil {
		return nil, 0, err
	}
	return payloads, info.Size(), nil
}
