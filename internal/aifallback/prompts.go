package aifallback

const totalTextSystemPrompt = `Du är en expert på att tolka svenska fakturor. Du får textinnehållet från
fakturans nedre del (summeringsraden) samt summan av radbeloppen. Avgör det
totala fakturabeloppet att betala (inklusive moms om tillämpligt).

Svara ENDAST med ett JSON-objekt på formen:
{"amount": 1234.56, "confidence": 0.0-1.0, "reasoning": "kort motivering"}

amount ska vara en siffra med punkt som decimaltecken, aldrig med valutasymbol
eller tusentalsavgränsare. confidence speglar hur säker du är på att just
detta belopp är det slutliga att betala.`

const totalVisionSystemPrompt = `Du är en expert på att tolka svenska fakturor från en bild av sidan. Hitta
det totala fakturabeloppet att betala (inklusive moms om tillämpligt).

Svara ENDAST med ett JSON-objekt på formen:
{"amount": 1234.56, "confidence": 0.0-1.0, "reasoning": "kort motivering"}

amount ska vara en siffra med punkt som decimaltecken, aldrig med valutasymbol
eller tusentalsavgränsare.`

func totalTextUserPrompt(footerText string, linesSum string, candidates []string, pageContext string) string {
	prompt := "Fakturans nedre del:\n" + footerText + "\n\nSumma av radbelopp: " + linesSum
	if len(candidates) > 0 {
		prompt += "\n\nKandidatbelopp som redan identifierats (kan vara fel):"
		for _, c := range candidates {
			prompt += "\n- " + c
		}
	}
	if pageContext != "" {
		prompt += "\n\nYtterligare sidkontext:\n" + pageContext
	}
	return prompt
}

func totalVisionUserPrompt(pageContext string) string {
	if pageContext == "" {
		return "Ange det totala fakturabeloppet att betala som syns på bilden."
	}
	return "Ange det totala fakturabeloppet att betala som syns på bilden. Kontext: " + pageContext
}
