package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/cbt-backend/internal/model"
)

func TestBind_QuestionRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"question":"2+2?","options":["3","4"],"correctAnswer":1,"subject":"math","difficulty":"easy"}`, ""},
		{"blank option", `{"question":"2+2?","options":["3","  "],"correctAnswer":1,"subject":"math","difficulty":"easy"}`, "options[1]"},
		{"missing answer", `{"question":"2+2?","options":["3","4"],"subject":"math","difficulty":"easy"}`, "correctAnswer"},
		{"bad difficulty", `{"question":"2+2?","options":["3","4"],"correctAnswer":0,"subject":"math","difficulty":"extreme"}`, "difficulty"},
		{"one option", `{"question":"2+2?","options":["4"],"correctAnswer":0,"subject":"math","difficulty":"easy"}`, "options"},
		{"malformed json", `{"question":`, "detail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req model.QuestionRequest
			fields := Bind(c, &req)
			if tt.wantField == "" {
				if fields != nil {
					t.Fatalf("unexpected errors %v", fields)
				}
				return
			}
			if _, ok := fields[tt.wantField]; !ok {
				t.Fatalf("want error on %q, got %v", tt.wantField, fields)
			}
		})
	}
}
