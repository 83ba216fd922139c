package message

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient over Bedrock's Converse API.
type BedrockLLMClient struct {
	api bedrockConverseAPI
}

func NewBedrockLLMClient(api bedrockConverseAPI) *BedrockLLMClient {
	if api == nil {
		panic("message: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api}
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("message: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}

		switch msg.Role {
		case ChatRoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
			continue
		case ChatRoleUser:
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		case ChatRoleAssistant:
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		default:
			return LLMResponse{}, fmt.Errorf("message: unsupported role %q", msg.Role)
		}
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		inference.TopP = aws.Float32(req.TopP)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil && inference.TopP == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		return LLMResponse{}, err
	}

	text, err := bedrockExtractOutputText(out)
	if err != nil {
		return LLMResponse{}, err
	}

	resp := LLMResponse{
		Text: strings.TrimSpace(text),
	}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockExtractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("message: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("message: bedrock response did not include a message output")
	}
	if len(msgOut.Value.Content) == 0 {
		return "", errors.New("message: bedrock response message was empty")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	outText := builder.String()
	if strings.TrimSpace(outText) == "" {
		return "", errors.New("message: bedrock response contained no text content blocks")
	}
	return outText, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
