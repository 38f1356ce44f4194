package bot

import (
	"ChatRelay/entity"
)

const (
	DepositReply = "1- Usar cuenta personal.\n" +
		"2- Enviar comprobante visible.\n" +
		"TITULAR CTA BANCARIA LEPRANSE SRL\n" +
		"CBU: 0000156002555796327337\n" +
		"ALIAS: leprance"

	WithdrawalReply = "PARA RETIRAR COMPLETAR DATOS:\n" +
		"Utilizar tu propia cuenta bancaria\n" +
		"\n" +
		"👇👇👇\n" +
		"USUARIO:\n" +
		"MONTO A RETIRAR:\n" +
		"NOMBRE DE CTA BANCARIA:\n" +
		"CBU:\n" +
		"COMPROBANTE DE TU ULTIMA CARGA:"

	ImageAckReply = "✅️¡excelente! Recibido✅️\n" +
		"¡En menos de 5 minutos sus fichas serán acreditadas!\n" +
		"En breve serán acreditadas."
)

// Matcher decides whether a rule applies to a message.
type Matcher func(msg *entity.Message) bool

// Rule pairs a matcher with the canned reply it produces.
type Rule struct {
	Name  string
	Match Matcher
	Reply string
}

// Responder evaluates its rules in order; the first match wins.
type Responder struct {
	rules []Rule
}

func NewResponder(rules ...Rule) *Responder {
	return &Responder{rules: rules}
}

// DefaultResponder returns the desk's canned replies.
func DefaultResponder() *Responder {
	return NewResponder(
		Rule{Name: "image-ack", Match: AnyImage(), Reply: ImageAckReply},
		Rule{Name: "deposit", Match: ExactText("Cargar Fichas"), Reply: DepositReply},
		Rule{Name: "withdrawal", Match: ExactText("Retirar"), Reply: WithdrawalReply},
	)
}

// Reply returns the canned reply for msg, if any. Bot and System messages
// never trigger a reply.
func (r *Responder) Reply(msg *entity.Message) (string, bool) {
	if msg == nil || msg.Sender == entity.SenderBot || msg.Sender == entity.SenderSystem {
		return "", false
	}
	for _, rule := range r.rules {
		if rule.Match(msg) {
			return rule.Reply, true
		}
	}
	return "", false
}

// ExactText matches text messages equal to text, byte for byte.
func ExactText(text string) Matcher {
	return func(msg *entity.Message) bool {
		return !msg.IsImage() && msg.Text == text
	}
}

// AnyImage matches every attachment message.
func AnyImage() Matcher {
	return func(msg *entity.Message) bool {
		return msg.IsImage()
	}
}
