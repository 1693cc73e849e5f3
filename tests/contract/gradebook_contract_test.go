package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/handler"
)

type stubGradebookService struct {
	entries dto.GradebookEntriesResponse
}

func (s stubGradebookService) Summaries(context.Context, dto.GradebookQuery) (dto.GradebookSummariesResponse, error) {
	return dto.GradebookSummariesResponse{}, nil
}

func (s stubGradebookService) Entries(context.Context, dto.GradebookQuery) (dto.GradebookEntriesResponse, error) {
	return s.entries, nil
}

func (s stubGradebookService) ExportCSV(context.Context, dto.GradebookQuery, io.Writer) (string, error) {
	return "gradebook_2026-01-01.csv", nil
}

func TestGradebookEntriesContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "gradebook_entries.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	score := 84.0
	percentage := 84.0
	submittedAt := now.Add(-2 * time.Hour)

	entries := dto.GradebookEntriesResponse{
		Entries: []dto.GradebookEntry{
			{
				StudentID:    1,
				StudentName:  "Alice Carter",
				StudentEmail: "alice@example.com",
				AssignmentID: 10,
				Assignment:   "Worksheet 3",
				CourseID:     1,
				CourseTitle:  "Algebra Basics",
				Score:        &score,
				MaxScore:     100,
				Percentage:   &percentage,
				Status:       dto.EntryStatusGraded,
				DueDate:      now.Add(24 * time.Hour),
				SubmittedAt:  &submittedAt,
				GradedAt:     &now,
				Feedback:     "Good work",
				IsLate:       false,
				LastActivity: now,
			},
			{
				StudentID:    2,
				StudentName:  "Bob Lee",
				StudentEmail: "bob@example.com",
				AssignmentID: 10,
				Assignment:   "Worksheet 3",
				CourseID:     1,
				CourseTitle:  "Algebra Basics",
				Score:        nil,
				MaxScore:     100,
				Percentage:   nil,
				Status:       dto.EntryStatusOverdue,
				DueDate:      now.Add(-24 * time.Hour),
				LastActivity: now.Add(-72 * time.Hour),
			},
		},
		FailedCourses: []dto.CourseLoadError{
			{CourseID: 2, CourseTitle: "Intro to Physics", Error: "connection reset"},
		},
		Partial:     true,
		GeneratedAt: now,
	}

	svc := stubGradebookService{entries: entries}
	gradebookHandler := handler.NewGradebookHandler(svc, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v2/gradebook", func(c *fiber.Ctx) error {
		c.Locals("user_id", "teacher-1")
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	gradebookHandler.Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/gradebook/entries", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
