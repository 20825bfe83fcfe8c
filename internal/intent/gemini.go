package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finai.app/internal/ledger"
)

// DefaultModel is the Gemini model used when no override is configured.
const DefaultModel = "gemini-3-flash-preview"

// Summary is the ledger snapshot handed to the oracle so advice can refer
// to real balances.
type Summary struct {
	Currency    string
	FreeBalance int64
	Boxes       []ledger.Box
}

// Reply is an oracle answer: advice text plus an optional proposal the
// caller must confirm before it is applied.
type Reply struct {
	Advice   string    `json:"advice"`
	Proposal *Proposal `json:"transaction,omitempty"`
}

// Oracle extracts advice and proposals from free-form user text.
type Oracle interface {
	Extract(ctx context.Context, input string, summary Summary) (Reply, error)
}

// GeminiOracle implements Oracle against the Gemini API.
type GeminiOracle struct {
	client *genai.Client
	model  string
}

func NewGeminiOracle(ctx context.Context, apiKey, model string) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("intent: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiOracle{client: client, model: model}, nil
}

func (o *GeminiOracle) Extract(ctx context.Context, input string, summary Summary) (Reply, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: input}},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction(summary)}},
		},
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}

	resp, err := o.client.Models.GenerateContent(ctx, o.model, contents, config)
	if err != nil {
		return Reply{}, fmt.Errorf("intent: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return Reply{}, fmt.Errorf("intent: empty response from model")
	}
	return decodeReply(raw)
}

// decodeReply parses the model output into a Reply, tolerating Markdown
// fences and stray text around the JSON object.
func decodeReply(raw string) (Reply, error) {
	clean := cleanModelJSON(raw)
	var reply Reply
	if err := json.Unmarshal([]byte(clean), &reply); err != nil {
		return Reply{}, fmt.Errorf("intent: unmarshal model output: %w\nraw response: %s", err, raw)
	}
	if reply.Proposal != nil && strings.TrimSpace(reply.Proposal.Kind) == "" {
		// A transaction object with no kind is noise, not a proposal.
		reply.Proposal = nil
	}
	return reply, nil
}

// systemInstruction renders the extraction prompt with the current balance
// summary so the model can give grounded advice.
func systemInstruction(s Summary) string {
	var b strings.Builder
	b.WriteString("Você é o FinAI, um assistente financeiro pessoal.\n")
	fmt.Fprintf(&b, "Saldo livre do usuário: %s.\n", FormatAmount(s.Currency, s.FreeBalance))
	if len(s.Boxes) == 0 {
		b.WriteString("Caixinhas: nenhuma.\n")
	} else {
		b.WriteString("Caixinhas: ")
		for i, box := range s.Boxes {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", box.Name, FormatAmount(s.Currency, box.Balance))
		}
		b.WriteString(".\n")
	}
	b.WriteString("\nProcesse comandos financeiros do usuário e dê conselhos curtos.\n" +
		"RESPONDA APENAS EM JSON VÁLIDO, sem cercas de código, sem Markdown.\n" +
		"Estrutura da resposta:\n" +
		"{\"advice\": string, \"transaction\": objeto ou null}\n\n" +
		"Quando o usuário registrar uma despesa ou receita, preencha \"transaction\":\n" +
		"- \"tipo\": \"despesa\" ou \"receita\"\n" +
		"- \"valor\": número (em " + currencyOrDefault(s.Currency) + ")\n" +
		"- \"descricao\": string\n" +
		"- \"categoria\": string\n" +
		"- \"data\": \"YYYY-MM-DD\" ou omita para hoje\n" +
		"- \"dataVencimento\": \"YYYY-MM-DD\" apenas para contas a pagar\n" +
		"- \"boxNome\": nome da caixinha quando o usuário mencionar uma\n\n" +
		"Quando o usuário pedir para criar uma caixinha, use:\n" +
		"- \"tipo\": \"criar_caixinha\", \"boxNome\": string, \"meta\": número, \"emoji\": string, \"banco\": string\n\n" +
		"Se o usuário só conversar ou pedir conselho, deixe \"transaction\" como null.\n")
	return b.String()
}

func currencyOrDefault(cur string) string {
	if cur == "" {
		return "BRL"
	}
	return cur
}

// FormatAmount renders minor units as a currency string, e.g. "R$ 123.45".
func FormatAmount(currency string, minor int64) string {
	symbol := "R$"
	if currency != "" && currency != "BRL" {
		symbol = currency
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", symbol, sign, minor/100, minor%100)
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if there is still junk
	// around the object.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
