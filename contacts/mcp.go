package contacts

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/contacts/idgen"
	"github.com/hazyhaar/contacts/kit"
)

// RegisterMCP registers the contacts tools on srv.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListTool(srv)
	s.registerGetTool(srv)
	s.registerCreateTool(srv)
	s.registerUpdateTool(srv)
	s.registerFavoriteTool(srv)
	s.registerDeleteTool(srv)
}

var newCallTraceID = idgen.Prefixed("mcp-", idgen.Default)

// register adds tool behind the call tracing and logging middlewares.
func (s *Service) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	chain := kit.Chain(s.traceCalls, s.logCalls(tool.Name))
	kit.RegisterMCPTool(srv, tool, chain(endpoint), decode)
}

// traceCalls gives each tool call a trace ID so its events can be grouped.
func (s *Service) traceCalls(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		if kit.GetTraceID(ctx) == "" {
			ctx = kit.WithTraceID(ctx, newCallTraceID())
		}
		return next(ctx, req)
	}
}

func (s *Service) logCalls(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			l := s.logger.With("tool", tool, "trace_id", kit.GetTraceID(ctx), "duration", time.Since(start))
			if err != nil {
				l.WarnContext(ctx, "contacts: tool failed", "error", err)
			} else {
				l.DebugContext(ctx, "contacts: tool call")
			}
			return resp, err
		}
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

var idProperty = map[string]any{"type": "string", "description": "Contact ID"}

// --- list ---

type listRequest struct {
	Query *string `json:"query,omitempty"`
}

type listResponse struct {
	Contacts []Contact `json:"contacts"`
	Count    int       `json:"count"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_list",
		Description: "List contacts ordered by last name. An optional query filters on first or last name, ignoring case.",
		InputSchema: inputSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Name filter"},
		}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listRequest)
		cs, err := s.ListContacts(ctx, r.Query)
		if err != nil {
			return nil, err
		}
		if cs == nil {
			cs = []Contact{}
		}
		return listResponse{Contacts: cs, Count: len(cs)}, nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[listRequest]())
}

// --- get ---

type idRequest struct {
	ID string `json:"id"`
}

func (s *Service) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_get",
		Description: "Get one contact by ID.",
		InputSchema: inputSchema(map[string]any{"id": idProperty}, []string{"id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.GetContact(ctx, req.(*idRequest).ID)
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[idRequest]())
}

// --- create ---

type createRequest struct {
	Update
}

func (s *Service) registerCreateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_create",
		Description: "Create a contact. All fields are optional; an empty call creates an unnamed contact.",
		InputSchema: inputSchema(map[string]any{
			"first":   map[string]any{"type": "string"},
			"last":    map[string]any{"type": "string"},
			"avatar":  map[string]any{"type": "string", "description": "http(s) image URL"},
			"twitter": map[string]any{"type": "string", "description": "Handle, with or without @"},
			"notes":   map[string]any{"type": "string"},
		}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*createRequest)
		return s.CreateContactWith(ctx, r.Update)
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[createRequest]())
}

// --- update ---

type updateRequest struct {
	ID string `json:"id"`
	Update
}

func (s *Service) registerUpdateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_update",
		Description: "Replace the editable fields of a contact. Omitted fields are cleared.",
		InputSchema: inputSchema(map[string]any{
			"id":      idProperty,
			"first":   map[string]any{"type": "string"},
			"last":    map[string]any{"type": "string"},
			"avatar":  map[string]any{"type": "string"},
			"twitter": map[string]any{"type": "string"},
			"notes":   map[string]any{"type": "string"},
		}, []string{"id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*updateRequest)
		return s.UpdateContact(ctx, r.ID, r.Update)
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[updateRequest]())
}

// --- favorite ---

type favoriteRequest struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

func (s *Service) registerFavoriteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_favorite",
		Description: "Mark or unmark a contact as favorite.",
		InputSchema: inputSchema(map[string]any{
			"id":       idProperty,
			"favorite": map[string]any{"type": "boolean"},
		}, []string{"id", "favorite"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*favoriteRequest)
		return s.SetFavorite(ctx, r.ID, r.Favorite)
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[favoriteRequest]())
}

// --- delete ---

func (s *Service) registerDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "contacts_delete",
		Description: "Delete a contact.",
		InputSchema: inputSchema(map[string]any{"id": idProperty}, []string{"id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		id := req.(*idRequest).ID
		if err := s.DeleteContact(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": id}, nil
	}
	s.register(srv, tool, endpoint, kit.DecodeArgs[idRequest]())
}
