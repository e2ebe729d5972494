package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/pose"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolAnalyzeRecording = mcp.NewTool("analyze_recording",
	mcp.WithDescription("Analyze a pose-landmark recording. Identifies the exercise by majority vote across overlapping windows and returns a verdict on movement correctness with a narrative report."),
	mcp.WithString("frames", mcp.Required(), mcp.Description("JSON array of frames; each frame is {\"joints\":[{\"x\":..,\"y\":..,\"z\":..,\"visibility\":..}]} with exactly 33 joints in MediaPipe landmark order")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List all recognizable rehabilitation exercises and their model family (legs or arms)."),
)

func (h *handlers) analyzeRecording(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	framesJSON, err := req.RequireString("frames")
	if err != nil {
		return mcp.NewToolResultError("frames parameter is required"), nil
	}

	var raw []pose.RawFrame
	if err := json.Unmarshal([]byte(framesJSON), &raw); err != nil {
		return mcp.NewToolResultError("invalid frames JSON: " + err.Error()), nil
	}
	frames, err := pose.DecodeFrames(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	agg := h.factory.NewSession()
	verdict, analysisErr := agg.AnalyzeRecording(frames)
	if analysisErr != nil {
		h.log.Info("mcp analyze_recording outcome", "outcome", string(verdict.Outcome))
	}

	result, err := mcp.NewToolResultJSON(verdict)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(catalogueEntries())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

type catalogueEntry struct {
	Label  exercise.Label  `json:"label"`
	Family exercise.Family `json:"family"`
}

func catalogueEntries() []catalogueEntry {
	labels := exercise.Catalogue()
	out := make([]catalogueEntry, 0, len(labels))
	for _, l := range labels {
		out = append(out, catalogueEntry{Label: l, Family: exercise.FamilyOf(l)})
	}
	return out
}
