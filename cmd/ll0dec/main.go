package main

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l2iterative/ll0/internal/driver"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ll0dec",
		Short: "ll0dec — decompiler and optimizer for ZKR verifier bytecode",
	}

	rootCmd.AddCommand(decompileCmd(), unzipCmd(), batchCmd(), verifyPassesCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func decompileCmd() *cobra.Command {
	var file string
	var output string
	var reorder bool
	var verifyPasses bool

	cmd := &cobra.Command{
		Use:   "decompile",
		Short: "Decode and optimize a single ZKR file, emitting .ll0 text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			start := time.Now()

			opts := driver.Options{Reorder: reorder, VerifyPasses: verifyPasses}
			prog, err := driver.DecompileFile(file, opts)
			if err != nil {
				return err
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(filepath.Base(file), ".zkr") + ".ll0"
			}
			if err := driver.EmitFile(out, prog); err != nil {
				return err
			}

			fmt.Printf("%s -> %s (%d instructions, %s)\n", file, out, prog.Len(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the input ZKR file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output .ll0 path (default: input basename with .zkr replaced by .ll0, else with .ll0 appended)")
	cmd.Flags().BoolVar(&reorder, "reorder", false, "Renumber addresses densely before emission")
	cmd.Flags().BoolVar(&verifyPasses, "verify-passes", false, "Self-check each pass for behavior preservation before emitting")
	return cmd
}

func verifyPassesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify-passes",
		Short: "Run the equivalence harness over a decoded program's pipeline, standalone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			_, err := driver.DecompileFile(file, driver.Options{VerifyPasses: true})
			if err != nil {
				return err
			}
			fmt.Printf("%s: all passes behavior-preserving\n", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the input ZKR file")
	return cmd
}

func unzipCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "unzip",
		Short: "Extract ZKR members from a ZIP container",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString("file")
			if err != nil || file == "" {
				return fmt.Errorf("--file is required")
			}
			if outDir == "" {
				outDir = "."
			}
			return extractZip(file, outDir)
		},
	}
	cmd.Flags().String("file", "", "Path to the ZIP archive")
	cmd.Flags().StringVar(&outDir, "output", "", "Output directory (default: current directory)")
	return cmd
}

func extractZip(archivePath, outDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	for _, member := range r.File {
		if member.FileInfo().IsDir() {
			continue
		}
		dest := filepath.Join(outDir, filepath.Base(member.Name))
		if err := extractZipMember(member, dest); err != nil {
			return fmt.Errorf("extracting %s: %w", member.Name, err)
		}
		fmt.Printf("%s -> %s\n", member.Name, dest)
	}
	return nil
}

func extractZipMember(member *zip.File, dest string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

func batchCmd() *cobra.Command {
	var glob string
	var outDir string
	var workers int
	var checkpointPath string
	var reorder bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Decompile every ZKR file matching a glob pattern in parallel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if glob == "" {
				return fmt.Errorf("--glob is required")
			}
			paths, err := filepath.Glob(glob)
			if err != nil {
				return fmt.Errorf("invalid --glob %q: %w", glob, err)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no files matched %q", glob)
			}

			if checkpointPath != "" {
				if ckpt, err := driver.LoadCheckpoint(checkpointPath); err == nil {
					paths = driver.Resume(paths, ckpt)
					fmt.Printf("resumed from checkpoint: %d files remaining\n", len(paths))
				}
			}

			if outDir == "" {
				outDir = "."
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			opts := driver.Options{Reorder: reorder, Log: logger}

			result := driver.RunBatch(paths, opts, workers)
			completed := make([]string, 0, len(paths))
			for _, r := range result.Results() {
				if r.Err != nil {
					continue
				}
				out := filepath.Join(outDir, stripExt(filepath.Base(r.Path))+".ll0")
				if err := driver.EmitFile(out, r.Program); err != nil {
					logger.Error("emit failed", "path", r.Path, "error", err)
					continue
				}
				completed = append(completed, r.Path)
			}

			failed := result.Failed()
			logger.Info("batch complete", "total", len(paths), "succeeded", len(completed), "failed", len(failed))

			if checkpointPath != "" {
				ckpt := &driver.BatchCheckpoint{Completed: completed}
				if err := driver.SaveCheckpoint(checkpointPath, ckpt); err != nil {
					return err
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed", len(failed), len(paths))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&glob, "glob", "", "Glob pattern of ZKR files to decompile")
	cmd.Flags().StringVar(&outDir, "output-dir", "", "Directory to write .ll0 files into (default: current directory)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of workers (0 = NumCPU)")
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file for resuming an interrupted batch")
	cmd.Flags().BoolVar(&reorder, "reorder", false, "Renumber addresses densely before emission")
	return cmd
}

func stripExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}
