package ingest

import "strings"

var bankLabels = map[string]string{
	"SCB":        "ไทยพาณิชย์",
	"KBANK":      "กสิกรไทย",
	"BBL":        "กรุงเทพ",
	"KTB":        "กรุงไทย",
	"BAY":        "กรุงศรีอยุธยา",
	"TTB":        "ทหารไทยธนชาต",
	"GSB":        "ออมสิน",
	"BAAC":       "ธ.ก.ส.",
	"GHB":        "อาคารสงเคราะห์",
	"UOB":        "ยูโอบี",
	"CIMB":       "ซีไอเอ็มบี ไทย",
	"KKP":        "เกียรตินาคินภัทร",
	"LHB":        "แลนด์ แอนด์ เฮ้าส์",
	"TISCO":      "ทิสโก้",
	"PROMPTPAY":  "พร้อมเพย์",
	"TRUEWALLET": "ทรูมันนี่ วอลเล็ท",
}

var eventLabels = map[string]string{
	"P2P":        "โอนเงิน",
	"TRANSFER":   "โอนเงิน",
	"TOPUP":      "เติมเงิน",
	"TOP_UP":     "เติมเงิน",
	"PAYMENT":    "ชำระเงิน",
	"WITHDRAW":   "ถอนเงิน",
	"WITHDRAWAL": "ถอนเงิน",
}

// BankLabel maps a channel code to its display name, or returns the code.
func BankLabel(code string) string {
	if label, ok := bankLabels[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return label
	}
	return code
}

// EventLabel maps a provider event code to its display name, or returns the code.
func EventLabel(code string) string {
	if label, ok := eventLabels[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return label
	}
	return code
}
