package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"citymonitor/internal/model"
	"citymonitor/internal/repository/sqlite"
	"citymonitor/internal/service/storage"
)

// cameraFlags collects repeated -camera "name|stream url|location" values.
type cameraFlags []model.Camera

func (c *cameraFlags) String() string { return fmt.Sprint(len(*c)) }

func (c *cameraFlags) Set(v string) error {
	parts := strings.Split(v, "|")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return fmt.Errorf("camera name required in %q", v)
	}
	cam := model.Camera{Name: strings.TrimSpace(parts[0]), Active: true}
	if len(parts) > 1 {
		cam.StreamURL = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		cam.Location = strings.TrimSpace(strings.Join(parts[2:], "|"))
	}
	*c = append(*c, cam)
	return nil
}

func main() {
	imagesDir := flag.String("images", "images", "Directory containing snapshots")
	dbPath := flag.String("db", "data/citymonitor.db", "Database path")
	var cameras cameraFlags
	flag.Var(&cameras, "camera", `Register a camera as "name|stream url|location" (repeatable)`)
	flag.Parse()

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	cameraRepo := sqlite.NewCameraRepository(db)
	for _, cam := range cameras {
		id, err := cameraRepo.Insert(&cam)
		if err != nil {
			log.Fatalf("Failed to register camera %s: %v", cam.Name, err)
		}
		fmt.Printf("Registered camera %s (id %d)\n", cam.Name, id)
	}

	fmt.Printf("Importing snapshots from %s to database %s\n", *imagesDir, *dbPath)

	files, err := os.ReadDir(*imagesDir)
	if os.IsNotExist(err) {
		fmt.Println("No snapshot directory, nothing to import")
		return
	}
	if err != nil {
		log.Fatalf("Failed to read snapshot directory: %v", err)
	}

	snapshotRepo := sqlite.NewSnapshotRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	imported, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		if existing, err := snapshotRepo.GetByFilename(file.Name()); err == nil && existing != nil {
			continue
		}

		taken, camera, objects, err := storage.ParseSnapshotFilename(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		id, err := snapshotRepo.Insert(&model.Snapshot{
			Filename:  file.Name(),
			Camera:    camera,
			Timestamp: taken,
			FilePath:  filepath.Join(*imagesDir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			log.Fatalf("Failed to insert %s: %v", file.Name(), err)
		}

		rows := make([]model.Detection, 0, len(objects))
		for _, obj := range objects {
			rows = append(rows, model.Detection{SnapshotID: id, ObjectName: obj})
		}
		if len(rows) > 0 {
			if err := detectionRepo.InsertBatch(rows); err != nil {
				log.Fatalf("Failed to insert detections for %s: %v", file.Name(), err)
			}
		}
		imported++
	}

	fmt.Printf("Imported %d snapshots, skipped %d\n", imported, skipped)
}
