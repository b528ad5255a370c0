package main

import (
	"github.com/google/uuid"

	"github.com/itohio/MecanumTrajOpt/pkg/trajopt"
	"github.com/itohio/MecanumTrajOpt/pkg/trajopt/dynamics"
)

// Request is the solve input record. Field names follow the wire format of
// the planning service this tool stands in for.
type Request struct {
	Waypoints            []WaypointRequest   `json:"waypoints" yaml:"waypoints"`
	Constraints          []ConstraintRequest `json:"constraints" yaml:"constraints"`
	RobotParams          *RobotParamsRequest `json:"robot_params" yaml:"robot_params"`
	SamplesPerMeter      float64             `json:"samples_per_meter" yaml:"samples_per_meter"`
	MinSamplesPerSegment int                 `json:"min_samples_per_segment" yaml:"min_samples_per_segment"`
	ControlEffortWeight  float64             `json:"control_effort_weight" yaml:"control_effort_weight"`
}

type WaypointRequest struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Heading float64 `json:"heading" yaml:"heading"`
	Stop    *bool   `json:"stop" yaml:"stop"`

	VMax     *float64 `json:"v_max" yaml:"v_max"`
	OmegaMax *float64 `json:"omega_max" yaml:"omega_max"`

	Type string `json:"type" yaml:"type"`

	IntakeX             float64  `json:"intake_x" yaml:"intake_x"`
	IntakeY             float64  `json:"intake_y" yaml:"intake_y"`
	IntakeDistance      *float64 `json:"intake_distance" yaml:"intake_distance"`
	IntakeVelocityMax   *float64 `json:"intake_velocity_max" yaml:"intake_velocity_max"`
	IntakeVelocitySlack *float64 `json:"intake_velocity_slack" yaml:"intake_velocity_slack"`
}

type ConstraintRequest struct {
	ID           string                  `json:"id" yaml:"id"`
	Type         string                  `json:"type" yaml:"type"`
	FromWaypoint int                     `json:"fromWaypoint" yaml:"fromWaypoint"`
	ToWaypoint   int                     `json:"toWaypoint" yaml:"toWaypoint"`
	Params       ConstraintParamsRequest `json:"params" yaml:"params"`
	Enabled      *bool                   `json:"enabled" yaml:"enabled"`
}

type ConstraintParamsRequest struct {
	CX     float64 `json:"cx" yaml:"cx"`
	CY     float64 `json:"cy" yaml:"cy"`
	Radius float64 `json:"radius" yaml:"radius"`

	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`

	VMax     float64 `json:"v_max" yaml:"v_max"`
	OmegaMax float64 `json:"omega_max" yaml:"omega_max"`
}

type RobotParamsRequest struct {
	Mass        float64 `json:"mass" yaml:"mass"`
	Inertia     float64 `json:"inertia" yaml:"inertia"`
	WheelRadius float64 `json:"wheel_radius" yaml:"wheel_radius"`
	LX          float64 `json:"lx" yaml:"lx"`
	LY          float64 `json:"ly" yaml:"ly"`
	WMax        float64 `json:"w_max" yaml:"w_max"`
	TMax        float64 `json:"t_max" yaml:"t_max"`
	FMax        float64 `json:"f_traction_max" yaml:"f_traction_max"`
}

// Response mirrors the service's solve response.
type Response struct {
	Success     bool               `json:"success"`
	TotalTime   float64            `json:"total_time"`
	Trajectory  TrajectoryResponse `json:"trajectory"`
	SolverStats SolverStats        `json:"solver_stats"`
}

type TrajectoryResponse struct {
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
}

type SolverStats struct {
	Iterations  int     `json:"iterations"`
	SolveTimeMS float64 `json:"solve_time_ms"`
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func orDefaultBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (r *Request) params() dynamics.Params {
	if r.RobotParams == nil {
		return dynamics.DefaultParams()
	}
	p := r.RobotParams
	return dynamics.Params{
		Mass:        p.Mass,
		Inertia:     p.Inertia,
		WheelRadius: p.WheelRadius,
		LX:          p.LX,
		LY:          p.LY,
		FreeSpeed:   p.WMax,
		StallTorque: p.TMax,
		TractionMax: p.FMax,
	}
}

func (r *Request) waypoints() ([]trajopt.Waypoint, error) {
	out := make([]trajopt.Waypoint, 0, len(r.Waypoints))
	for _, w := range r.Waypoints {
		kind, err := trajopt.ParseWaypointKind(w.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, trajopt.Waypoint{
			X:              w.X,
			Y:              w.Y,
			Heading:        w.Heading,
			Stop:           orDefaultBool(w.Stop, true),
			VMax:           orDefault(w.VMax, 3.0),
			OmegaMax:       orDefault(w.OmegaMax, 10.0),
			Kind:           kind,
			IntakeX:        w.IntakeX,
			IntakeY:        w.IntakeY,
			IntakeDistance: orDefault(w.IntakeDistance, 0.5),
			IntakeVMax:     orDefault(w.IntakeVelocityMax, 1.0),
			IntakeSlack:    orDefault(w.IntakeVelocitySlack, 0.1),
		})
	}
	return out, nil
}

func (r *Request) constraints() ([]trajopt.PathConstraint, error) {
	out := make([]trajopt.PathConstraint, 0, len(r.Constraints))
	for _, c := range r.Constraints {
		kind, err := trajopt.ParseConstraintKind(c.Type)
		if err != nil {
			return nil, err
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, trajopt.PathConstraint{
			ID:       id,
			Kind:     kind,
			From:     c.FromWaypoint,
			To:       c.ToWaypoint,
			Enabled:  orDefaultBool(c.Enabled, true),
			CenterX:  c.Params.CX,
			CenterY:  c.Params.CY,
			Radius:   c.Params.Radius,
			X:        c.Params.X,
			Y:        c.Params.Y,
			Width:    c.Params.Width,
			Height:   c.Params.Height,
			VMax:     c.Params.VMax,
			OmegaMax: c.Params.OmegaMax,
		})
	}
	return out, nil
}

func newResponse(res *trajopt.Result) Response {
	return Response{
		Success:   res.Success,
		TotalTime: res.TotalTime,
		Trajectory: TrajectoryResponse{
			Times:    res.Times,
			States:   res.States,
			Controls: res.Controls,
		},
		SolverStats: SolverStats{
			Iterations:  res.Iterations,
			SolveTimeMS: res.SolveTimeMillis,
		},
	}
}
