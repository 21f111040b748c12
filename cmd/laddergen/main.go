// Command laddergen compiles a timing specification file into a GX
// Works2 ladder program without running the HTTP server.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/openmelsec/laddergen/internal/config"
	"github.com/openmelsec/laddergen/internal/formats"
	"github.com/openmelsec/laddergen/internal/pipeline"
	"github.com/openmelsec/laddergen/internal/validate"
)

func main() {
	var (
		specPath    = flag.String("spec", "", "timing specification file (.json or .yaml)")
		outDir      = flag.String("out", ".", "output directory")
		configPath  = flag.String("config", "", "path to config.yaml (optional)")
		analyzeOnly = flag.Bool("analyze", false, "detect patterns only, print the analysis and exit")
		quiet       = flag.Bool("quiet", false, "suppress progress logging")
	)
	flag.Parse()

	if *specPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if !*quiet {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		logger = l
	}
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("Failed to load config", zap.Error(err))
		}
		cfg = loaded
	}

	devCfg, err := cfg.Target.DeviceConfig()
	if err != nil {
		logger.Fatal("Invalid target configuration", zap.Error(err))
	}

	pipe, err := pipeline.New(devCfg, logger)
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}

	raw, err := readSpec(*specPath)
	if err != nil {
		logger.Fatal("Failed to read specification", zap.Error(err))
	}

	if *analyzeOnly {
		analysis, err := pipe.AnalyzeJSON(raw)
		if err != nil {
			logger.Fatal("Analysis failed", zap.Error(err))
		}
		out, _ := json.MarshalIndent(analysis, "", "  ")
		fmt.Println(string(out))
		return
	}

	result, err := pipe.GenerateJSON(raw)
	if err != nil {
		var structural *validate.StructuralError
		if errors.As(err, &structural) {
			for _, issue := range structural.Report.Errors {
				fmt.Fprintf(os.Stderr, "%s at %d: %s\n", issue.Code, issue.Position, issue.Message)
			}
		}
		logger.Fatal("Generation failed", zap.Error(err))
	}

	opts := formats.Options{
		ProgramName: cfg.Export.ProgramName,
		CPUType:     cfg.Target.CPUType,
	}
	export := formats.Export(result.Program, result.Instructions, opts)

	base := strings.TrimSuffix(filepath.Base(*specPath), filepath.Ext(*specPath))
	outputs := map[string][]byte{
		base + ".il":           []byte(export.ProgramText + "\n"),
		base + ".csv":          export.ProgramCSV,
		base + "_comments.csv": []byte(export.DeviceCommentsCSV),
	}
	for name, data := range outputs {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Fatal("Failed to write output", zap.String("path", path), zap.Error(err))
		}
		logger.Info("Wrote output", zap.String("path", path), zap.Int("bytes", len(data)))
	}

	fmt.Printf("%d instructions, %d rungs, %d devices\n",
		export.InstructionCount, export.RungCount, len(result.DeviceMap.Allocations))
}

// readSpec loads the spec file, converting YAML to JSON so one schema
// covers both encodings.
func readSpec(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return raw, nil
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return json.Marshal(doc)
}
