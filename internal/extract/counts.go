package extract

var noAccidents = mustPattern(`(?i)\bno\s*accidents?\b`)

var ownersChain = Chain[int]{
	jsonCount("json owner count", "ownerCount", "totalOwners"),
	textCount("previous owners", SignalLabeled, `(?i)\b(\d+)\s*Previous\s*owners?\b`),
	regionCount("owner region", `[class*="owner"], .ownership-history`, `(?i)\b(\d+)\s*(?:Previous\s*)?owners?\b`),
	textCount("owner count", SignalText, `(?i)\b(\d+)[ \t]*-?[ \t]*owners?\b`),
	markupCount("owner markup", `(?i)\bowners?["\s:>]+(\d+)`),
}

var accidentsChain = Chain[int]{
	{
		Name:   "no accidents",
		Signal: SignalLabeled,
		Extract: func(doc *Document) (int, bool) {
			return 0, noAccidents.MatchString(doc.Text) || noAccidents.MatchString(doc.HTML)
		},
	},
	jsonCount("json accident count", "accidentCount"),
	textCount("accidents reported", SignalLabeled, `(?i)\b(\d+)\s*accidents?\s*reported`),
	regionCount("accident region", `[class*="accident"]`, `(?i)\b(\d+)\s*accidents?\b`),
	textCount("accident count", SignalText, `(?i)\b(\d+)[ \t]*accidents?\b`),
	markupCount("accident markup", `(?i)\baccidents?["\s:>]+(\d+)`),
}

var serviceRecordsChain = Chain[int]{
	jsonCount("json service record count", "serviceRecordCount"),
	textCount("service history records", SignalLabeled, `(?i)\b(\d+)\s*Service\s*history\s*records?\b`),
	textCount("service records", SignalLabeled, `(?i)\b(\d+)\s*service\s*records?\b`),
	textCount("service line", SignalText, `(?i)service[^\n]*?\b(\d+)\s*records?\b`),
}

// Owners extracts the number of previous owners.
func Owners(doc *Document) (int, bool) {
	return ownersChain.Run(doc)
}

// Accidents extracts the number of reported accidents. A "no accidents"
// statement anywhere on the page wins over every count.
func Accidents(doc *Document) (int, bool) {
	return accidentsChain.Run(doc)
}

// ServiceRecords extracts the number of service history records.
func ServiceRecords(doc *Document) (int, bool) {
	return serviceRecordsChain.Run(doc)
}
