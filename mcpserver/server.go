// Package mcpserver exposes the playground over the Model Context Protocol.
// It registers a single execute_r_command tool plus a paper-review prompt and
// serves them on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/zygi/r-playground-mcp/interp"
	"github.com/zygi/r-playground-mcp/session"
)

const serverName = "R Playground"

const executeDescription = `Execute an R command in a transient session. Arguments:
- command: The R command (or a series of commands) to execute in the REPL session.
- r_session_id: The ID of the session to execute the command in. If not provided, a new session will be created. Leave blank the first time you call this tool.`

const imageWritingDescription = `
You are allowed to output plots and images from your R code. To do so, you should use the function ` + interp.HelperName + `(extension="png") to get a magic filename. If you then write the plot to the filename, it will be returned as part of this tool's results.
You can write the images using any R mechanisms, e.g. by creating an R device with ` + "`png(filename=" + interp.HelperName + "(), width=..., height=...)`." + `
`

const reviewPaperPrompt = `You will be given a paper to review. Your goal is to analyze its methods in terms of its use of statistical methods.
If a paper wasn't attached, inform the user and stop - don't make one up.

To analyze the paper, you can use the ` + "`execute_r_command`" + ` tool. You should recompute and verify the numerical results of the paper.
If the matches are perfect, great. If the matches are not perfect, try to understand whether that can be explained by different assumptions unreported in the paper.
If you're convinced you found a mistake, report that.

Once you're done analyzing the paper, output a summary of its core hypotheses supported by quantitative claims, and your evaluation of the correctness of statistical evaluations.

Guidelines:
- Do not make up synthetic data. You should only use inputs that are explicitly reported in the paper. If the paper does not report enough inputs to do any meaningful checking, just mention that.
`

// ExecuteArgs is the execute_r_command input.
type ExecuteArgs struct {
	Command    string `json:"command" jsonschema:"the R code to run"`
	RSessionID string `json:"r_session_id,omitempty" jsonschema:"session to run in; blank creates a new session"`
}

// ExecuteResult mirrors the tool's structured output. Exactly one of the
// error fields is set when the call failed.
type ExecuteResult struct {
	SessionID         string `json:"session_id"`
	SuccessfulOutput  string `json:"successful_output,omitempty"`
	RErrorOutput      string `json:"r_error_output,omitempty"`
	SystemErrorOutput string `json:"system_error_output,omitempty"`
}

// Server wires a session manager into an MCP server.
type Server struct {
	manager     *session.Manager
	imageOutput bool
	version     string
	log         *logrus.Entry
}

// New builds a Server; imageOutput controls both image return and whether
// the tool description advertises the plot helper.
func New(manager *session.Manager, imageOutput bool, version string) *Server {
	return &Server{
		manager:     manager,
		imageOutput: imageOutput,
		version:     version,
		log:         logrus.WithField("component", "mcp"),
	}
}

// ToolDescription is what execute_r_command advertises, with the plot
// helper instructions only when images are enabled.
func (s *Server) ToolDescription() string {
	if !s.imageOutput {
		return executeDescription
	}
	return executeDescription + "\n" + imageWritingDescription
}

func (s *Server) build() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: s.version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "execute_r_command",
		Description: s.ToolDescription(),
	}, s.handleExecute)

	srv.AddPrompt(&mcp.Prompt{
		Name:        "review_paper",
		Description: "Statistically review an attached paper using the R playground.",
	}, s.handleReviewPaper)

	return srv
}

// Run serves MCP over stdio until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.log.WithField("image_output", s.imageOutput).Info("serving MCP on stdio")
	defer s.manager.CloseAll()
	return s.build().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleExecute(ctx context.Context, req *mcp.CallToolRequest, args ExecuteArgs) (*mcp.CallToolResult, ExecuteResult, error) {
	id := args.RSessionID
	if id == "" {
		var err error
		id, err = s.manager.CreateSession()
		if err != nil {
			s.log.WithError(err).Error("session creation failed")
			out := ExecuteResult{SystemErrorOutput: err.Error()}
			return resultFor(out, nil, false), out, nil
		}
		s.log.WithField("session", id).Info("created session")
	}

	res, err := s.manager.Execute(ctx, id, args.Command)
	if err != nil {
		out := ExecuteResult{SessionID: id, SystemErrorOutput: err.Error()}
		return resultFor(out, nil, false), out, nil
	}

	out := assembleResult(res)
	return resultFor(out, res, s.imageOutput), out, nil
}

// assembleResult folds an execution result into the tool's output shape.
// Parse and runtime failures are R errors; timeouts, busy rejections and
// interpreter deaths are system errors.
func assembleResult(res *session.Result) ExecuteResult {
	out := ExecuteResult{SessionID: res.SessionID}

	text := res.Stdout
	if res.HasValue {
		if text != "" {
			text += "\n"
		}
		text += res.Value
	}

	if res.Err == nil {
		out.SuccessfulOutput = text
		return out
	}

	msg := res.Err.Message
	if res.Stderr != "" {
		msg = res.Stderr + "\n" + msg
	}
	switch res.Err.Kind {
	case interp.KindParse, interp.KindRuntime:
		out.SuccessfulOutput = text
		out.RErrorOutput = msg
	default:
		out.SystemErrorOutput = msg
	}
	return out
}

// resultFor renders the call content: the JSON result as text, then one
// image block per captured plot.
func resultFor(out ExecuteResult, res *session.Result, images bool) *mcp.CallToolResult {
	data, err := json.Marshal(out)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"system_error_output":%q}`, err.Error()))
	}

	content := []mcp.Content{&mcp.TextContent{Text: string(data)}}
	if images && res != nil {
		for _, img := range res.Images {
			content = append(content, &mcp.ImageContent{
				Data:     img.Data,
				MIMEType: "image/" + img.Format,
			})
		}
	}
	return &mcp.CallToolResult{Content: content}
}

func (s *Server) handleReviewPaper(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: reviewPaperPrompt},
		}},
	}, nil
}
