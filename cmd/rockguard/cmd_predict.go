package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rockguard/internal/features"
	"rockguard/internal/model"
	"rockguard/internal/risk"
)

var predictFlags struct {
	input   string
	seed    uint64
	reading model.Reading
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score one reading and print the risk report as JSON",
	Long: `Scores a single reading with the stored model.

The reading comes from --input (a JSON object, "-" for stdin) or from the
per-field flags. Derived metrics are random unless --seed is set.`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVarP(&predictFlags.input, "input", "i", "", "Reading JSON file, or - for stdin")
	f.Uint64Var(&predictFlags.seed, "seed", 0, "Seed for derived metrics (0: random)")
	r := &predictFlags.reading
	f.Float64Var(&r.Temperature, "temperature", 0, "Temperature (°C)")
	f.Float64Var(&r.Humidity, "humidity", 0, "Relative humidity (%)")
	f.Float64Var(&r.Vibration, "vibration", 0, "Vibration (mm/s)")
	f.Float64Var(&r.AirQuality, "air-quality", 0, "Air quality index")
	f.Float64Var(&r.Rainfall, "rainfall", 0, "Rainfall (mm)")
	f.Float64Var(&r.SoilMoisture, "soil-moisture", 0, "Soil moisture (%)")
	f.Float64Var(&r.WindSpeed, "wind-speed", 0, "Wind speed (m/s)")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	reading := predictFlags.reading
	if predictFlags.input != "" {
		if reading, err = readReading(cmd, predictFlags.input); err != nil {
			return err
		}
	} else if err := requireFieldFlags(cmd); err != nil {
		return err
	}

	a, _, err := loadModel(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	asm, err := newAssembler(cfg, a, risk.NewSeededSource(predictFlags.seed), logger)
	if err != nil {
		return err
	}
	report, err := asm.Assemble(cmd.Context(), reading)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// requireFieldFlags rejects a flag-built reading unless every measurement was given.
func requireFieldFlags(cmd *cobra.Command) error {
	for _, name := range features.Names() {
		if !cmd.Flags().Changed(fieldFlag(name)) {
			return &features.InvalidInputError{Field: name, Reason: "missing (pass --" + fieldFlag(name) + " or --input)"}
		}
	}
	return nil
}

func fieldFlag(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

func readReading(cmd *cobra.Command, path string) (model.Reading, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.Reading{}, err
	}
	return features.ParseJSON(data)
}
