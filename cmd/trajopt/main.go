// Command trajopt solves one trajectory planning request from a JSON or YAML
// file and writes the trajectory as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/itohio/MecanumTrajOpt/pkg/logger"
	"github.com/itohio/MecanumTrajOpt/pkg/trajopt"
)

func main() {
	requestPath := flag.String("request", "", "Path to a solve request (.json, .yaml or .yml)")
	outPath := flag.String("out", "", "Output path for the trajectory JSON (default stdout)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *requestPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: trajopt -request plan.json [-out trajectory.json]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logger.New(os.Stderr).Level(zerolog.InfoLevel)
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	req, err := loadRequest(*requestPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *requestPath).Msg("loading request")
	}

	resp, err := solve(req, log)
	if err != nil {
		log.Fatal().Err(err).Msg("solving request")
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encoding response")
	}
	data = append(data, '\n')

	if *outPath == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("writing response")
	}
	log.Info().Str("path", *outPath).Msg("trajectory written")
}

func loadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req := &Request{
		SamplesPerMeter:      20,
		MinSamplesPerSegment: 3,
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, req)
	default:
		err = json.Unmarshal(data, req)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func solve(req *Request, log zerolog.Logger) (*Response, error) {
	waypoints, err := req.waypoints()
	if err != nil {
		return nil, err
	}
	constraints, err := req.constraints()
	if err != nil {
		return nil, err
	}

	opts := []trajopt.Option{
		trajopt.WithSampling(req.SamplesPerMeter, req.MinSamplesPerSegment),
		trajopt.WithLogger(log),
	}
	if req.ControlEffortWeight > 0 {
		opts = append(opts, trajopt.WithControlEffortWeight(req.ControlEffortWeight))
	}

	opt, err := trajopt.New(req.params(), opts...)
	if err != nil {
		return nil, err
	}
	res, err := opt.Solve(waypoints, constraints)
	if err != nil {
		return nil, err
	}
	resp := newResponse(res)
	return &resp, nil
}
