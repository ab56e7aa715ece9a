package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
)

// ModelReasoner runs specialists on a chat model. Each Run is one model
// round: the reply text becomes a message action and each tool call becomes
// either a tool action or, for transfer_to_<id> calls, a handoff action.
type ModelReasoner struct {
	chatModel      model.BaseChatModel
	registry       *specialist.Registry
	requestTimeout time.Duration
}

// NewModelReasoner creates a reasoner over chatModel.
func NewModelReasoner(chatModel model.BaseChatModel, registry *specialist.Registry) (*ModelReasoner, error) {
	if chatModel == nil {
		return nil, errors.New("model reasoner requires a chat model")
	}
	if registry == nil {
		return nil, errors.New("model reasoner requires a registry")
	}
	return &ModelReasoner{chatModel: chatModel, registry: registry}, nil
}

// SetRequestTimeout bounds each model round. Zero disables the bound.
func (r *ModelReasoner) SetRequestTimeout(d time.Duration) {
	r.requestTimeout = d
}

// Run implements Reasoner.
func (r *ModelReasoner) Run(ctx context.Context, req Request) (*Result, error) {
	if r.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.requestTimeout)
		defer cancel()
	}
	d := r.registry.Resolve(req.SpecialistID)

	input := make([]*schema.Message, 0, len(req.History)+1)
	input = append(input, schema.SystemMessage(r.instructions(d, req.Context)))
	input = append(input, toSchemaMessages(req.History)...)

	reply, err := r.chatModel.Generate(ctx, input, model.WithTools(r.toolInfos(d)))
	if err != nil {
		return nil, fmt.Errorf("generate reply for %s: %w", d.ID, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("generate reply for %s: empty reply", d.ID)
	}

	record := domain.Message{
		Role:       domain.RoleAssistant,
		Content:    reply.Content,
		Specialist: d.ID,
	}

	var actions []Action
	if text := strings.TrimSpace(reply.Content); text != "" {
		actions = append(actions, Action{Kind: ActionMessage, Specialist: d.ID, Text: text})
	}
	for _, call := range reply.ToolCalls {
		record.ToolCalls = append(record.ToolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
		if target, ok := strings.CutPrefix(call.Function.Name, HandoffToolPrefix); ok {
			actions = append(actions, Action{
				Kind:       ActionHandoff,
				Specialist: d.ID,
				ToolCallID: call.ID,
				Target:     target,
			})
			continue
		}
		actions = append(actions, Action{
			Kind:       ActionToolCall,
			Specialist: d.ID,
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
			Arguments:  call.Function.Arguments,
		})
	}

	history := domain.CloneHistory(req.History)
	history = append(history, record)

	return &Result{
		History:             history,
		Actions:             actions,
		AwaitingToolResults: len(reply.ToolCalls) > 0,
	}, nil
}

func (r *ModelReasoner) instructions(d *specialist.Descriptor, shared domain.AirlineContext) string {
	if d.Instructions != nil {
		return d.Instructions(shared)
	}
	return fmt.Sprintf("You are the %s. %s", d.Label, d.Description)
}

func (r *ModelReasoner) toolInfos(d *specialist.Descriptor) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(d.Tools)+len(d.Handoffs))
	for _, t := range d.Tools {
		params := make(map[string]*schema.ParameterInfo, len(t.Params))
		for name, p := range t.Params {
			params[name] = &schema.ParameterInfo{
				Type:     toDataType(p.Type),
				Desc:     p.Desc,
				Required: p.Required,
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	for _, h := range d.Handoffs {
		target, ok := r.registry.Get(h.Target)
		if !ok {
			continue
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        HandoffToolPrefix + target.ID,
			Desc:        fmt.Sprintf("Hand the conversation to the %s. %s", target.Label, target.Description),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		})
	}
	return infos
}

func toDataType(t specialist.ParamType) schema.DataType {
	switch t {
	case specialist.ParamInteger:
		return schema.Integer
	case specialist.ParamBoolean:
		return schema.Boolean
	default:
		return schema.String
	}
}

func toSchemaMessages(history []domain.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case domain.RoleTool:
			out = append(out, schema.ToolMessage(m.Content, m.ToolCallID))
		default:
			var calls []schema.ToolCall
			for _, c := range m.ToolCalls {
				calls = append(calls, schema.ToolCall{
					ID:   c.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      c.Name,
						Arguments: c.Arguments,
					},
				})
			}
			out = append(out, schema.AssistantMessage(m.Content, calls))
		}
	}
	return out
}

var _ Reasoner = (*ModelReasoner)(nil)
