package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/studyport-backend/internal/app"
)

func main() {
	var studyUUID string
	var outDir string
	flag.StringVar(&studyUUID, "uuid", "", "uuid of the study to export")
	flag.StringVar(&outDir, "out", ".", "directory the archive is written to")
	flag.Parse()

	studyUUID = strings.TrimSpace(studyUUID)
	if studyUUID == "" {
		fmt.Println("-uuid is required")
		os.Exit(2)
	}

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	transfer := application.Services.ImportExport
	res, err := transfer.ExportStudyByUUID(ctx, studyUUID)
	if err != nil {
		fmt.Printf("export %s: %v\n", studyUUID, err)
		os.Exit(1)
	}
	defer transfer.Cleanup(res)

	src, err := transfer.Open(res)
	if err != nil {
		fmt.Printf("open export: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	dest := filepath.Join(outDir, res.Name)
	out, err := os.Create(dest)
	if err != nil {
		fmt.Printf("create %s: %v\n", dest, err)
		os.Exit(1)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		fmt.Printf("write %s: %v\n", dest, err)
		os.Exit(1)
	}
	if err := out.Close(); err != nil {
		fmt.Printf("close %s: %v\n", dest, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s (%d bytes)\n", dest, res.Size)
	if res.URL != "" {
		fmt.Printf("mirrored to %s\n", res.URL)
	}
}
