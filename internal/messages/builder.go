package messages

import (
	"fmt"
	"strings"

	"github.com/Guizzs26/sample-outreach/internal/detector"
	"github.com/Guizzs26/sample-outreach/internal/models"
)

// Build produces the ordered chat message parts for one scenario. It is pure:
// the product name and the creator's WhatsApp are looked up by the caller.
// Unknown scenarios yield no messages, which the publisher treats as a signal
// to retire the schedule.
func Build(scenario models.Scenario, sample models.SampleSnapshot, productName, creatorWhatsapp, linkTemplate string) []models.Message {
	switch models.Scenario(detector.NormalizeStatus(string(scenario))) {
	case models.ScenarioShipped:
		return shipped(sample, productName, creatorWhatsapp)
	case models.ScenarioContentPending:
		return contentPending(sample, productName, linkTemplate)
	case models.ScenarioNoContentPosted:
		return noContentPosted(sample, productName, linkTemplate)
	case models.ScenarioMissingAdCode:
		return missingAdCode(sample, productName, linkTemplate)
	}
	return nil
}

// productBlock is the product identification block embedded in every template:
// product name and/or platform product id, one per line.
func productBlock(sample models.SampleSnapshot, productName string) string {
	productID := strings.TrimSpace(sample.PlatformProductID)
	productName = strings.TrimSpace(productName)

	var parts []string
	if productName != "" {
		parts = append(parts, productName)
	}
	if productID != "" {
		parts = append(parts, fmt.Sprintf("product ID: %s", productID))
	}
	if len(parts) == 0 {
		return "product info unavailable"
	}
	return strings.Join(parts, "\n")
}

func sampleLink(sample models.SampleSnapshot, linkTemplate string) string {
	sampleID := strings.TrimSpace(sample.SampleID)
	if sampleID == "" {
		return ""
	}
	return fmt.Sprintf(linkTemplate, strings.ToUpper(sampleID))
}

func withLink(text string, sample models.SampleSnapshot, linkTemplate string) []models.Message {
	msgs := []models.Message{{Kind: models.MessageText, Content: text}}
	if link := sampleLink(sample, linkTemplate); link != "" {
		msgs = append(msgs, models.Message{Kind: models.MessageLink, Content: link})
	}
	return msgs
}

func shipped(sample models.SampleSnapshot, productName, creatorWhatsapp string) []models.Message {
	block := productBlock(sample, productName)

	if strings.TrimSpace(creatorWhatsapp) != "" {
		text := "🥰 Me complace informarte que tus muestras ya han sido enviadas.\n\n" + block
		return []models.Message{{Kind: models.MessageText, Content: text}}
	}

	text := "🥰 Me complace informarte que tus muestras ya han sido enviadas.\n\n" +
		block + "\n\n" +
		"Además, nos gustaría invitarte a unirte a nuestra comunidad de creadores, donde compartimos oportunidades de colaboración, briefings y tips para aumentar tus ventas.\n\n" +
		"¿Me podrías compartir tu número de WhatsApp para agregarte?\n\n" +
		"O, si prefieres, puedes agregarme directamente a WhatsApp y enviarme un mensaje, incluyendo tu Creator ID.\n\n" +
		"Mi WhatsApp: +52 55 6091 7657."
	return []models.Message{{Kind: models.MessageText, Content: text}}
}

func contentPending(sample models.SampleSnapshot, productName, linkTemplate string) []models.Message {
	text := "Hola, ¿ya recibiste las muestras? 😊\n\n" +
		productBlock(sample, productName) + "\n\n" +
		"Aquí tienes la Guía para Creadores que hemos diseñado especialmente para ti. ¡Descubre el secreto para generar ventas explosivas!\n\n" +
		"Copia el enlace y ábrelo en el navegador de tu móvil para ver los detalles.👇"
	return withLink(text, sample, linkTemplate)
}

func noContentPosted(sample models.SampleSnapshot, productName, linkTemplate string) []models.Message {
	text := "Hola, ¿cómo estás? 😊\n\n" +
		"Notamos que el contenido del producto aún no ha sido publicado y ya pasó la fecha acordada. ¿Podrías por favor confirmarme cuándo podrás subir el video?\n\n" +
		productBlock(sample, productName) + "\n\n" +
		"Tu publicación es muy importante para futuras colaboraciones y para poder seguir enviándote más productos. 🙏\n\n" +
		"¡Gracias por tu apoyo!\n\n" +
		"Copia el enlace y ábrelo en el navegador de tu móvil para ver los detalles.👇"
	return withLink(text, sample, linkTemplate)
}

func missingAdCode(sample models.SampleSnapshot, productName, linkTemplate string) []models.Message {
	text := "Hola, 😍 nos encantaría darle aún más visibilidad con una promoción en TikTok. ¿Podrías compartirnos tu código AD para que podamos lanzar la campaña? 🙏\n\n" +
		productBlock(sample, productName) + "\n\n" +
		"Copia el enlace y ábrelo en el navegador de tu móvil para ver los detalles.👇"
	return withLink(text, sample, linkTemplate)
}
