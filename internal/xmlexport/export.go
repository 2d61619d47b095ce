// Package xmlexport projects one finalized field map into the
// hierarchical ESADout_CU shape the external exporter consumes. The
// projection is all or nothing: any inconsistency surfaces as an
// ExportError and no partial document leaves the package.
package xmlexport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/taridex/declaration-processor/internal/model"
)

// maxChunk is the wire-format limit on one free-text element. Longer
// text is split into ordered chunks, never truncated.
const maxChunk = 250

// headerMapping is the fixed flat-key to nested-path table for the
// declaration header. Paths are slash separated under the root element;
// empty values produce no element.
var headerMapping = []struct {
	key  string
	path string
}{
	{"g1_1", "ESADout_CUMainInfo/DeclarationKind"},
	{"g1_2", "ESADout_CUMainInfo/CustomsProcedure"},
	{"g1_3", "ESADout_CUMainInfo/DeclarationForm"},
	{"g3_1", "ESADout_CUMainInfo/SheetNumber"},
	{"g3_2", "ESADout_CUMainInfo/TotalSheetNumber"},
	{"g5_1", "ESADout_CUMainInfo/TotalGoodsNumber"},
	{"g6_1", "ESADout_CUMainInfo/TotalPackageNumber"},
	{"declaration_date", "ESADout_CUMainInfo/DeclarationDate"},

	{"g2_1", "ESADout_CUConsignor/INN"},
	{"g2_2", "ESADout_CUConsignor/KPP"},
	{"g2_3", "ESADout_CUConsignor/OrganizationName"},
	{"g2_11", "ESADout_CUConsignor/OGRN"},
	{"g2_4", "ESADout_CUConsignor/Address/CountryCode"},
	{"g2_5", "ESADout_CUConsignor/Address/CountryName"},
	{"g2_6", "ESADout_CUConsignor/Address/PostalCode"},
	{"g2_7", "ESADout_CUConsignor/Address/Region"},
	{"g2_8", "ESADout_CUConsignor/Address/City"},
	{"g2_9", "ESADout_CUConsignor/Address/StreetHouse"},
	{"g2_10", "ESADout_CUConsignor/Address/House"},

	{"g8_1", "ESADout_CUConsignee/INN"},
	{"g8_2", "ESADout_CUConsignee/KPP"},
	{"g8_3", "ESADout_CUConsignee/OrganizationName"},
	{"g8_4", "ESADout_CUConsignee/Address/CountryCode"},
	{"g8_5", "ESADout_CUConsignee/Address/CountryName"},
	{"g8_6", "ESADout_CUConsignee/Address/PostalCode"},
	{"g8_7", "ESADout_CUConsignee/Address/Region"},
	{"g8_8", "ESADout_CUConsignee/Address/City"},
	{"g8_9", "ESADout_CUConsignee/Address/Street"},
	{"g8_10", "ESADout_CUConsignee/Address/House"},
	{"g8_11", "ESADout_CUConsignee/OGRN"},

	{"g9_3", "ESADout_CUFinancialAdjustingResponsiblePerson/OrganizationName"},

	{"g14_1", "ESADout_CUDeclarant/INN"},
	{"g14_2", "ESADout_CUDeclarant/KPP"},
	{"g14_3", "ESADout_CUDeclarant/OrganizationName"},
	{"g14_11", "ESADout_CUDeclarant/OGRN"},
	{"g14_4", "ESADout_CUDeclarant/Address/CountryCode"},
	{"g14_5", "ESADout_CUDeclarant/Address/CountryName"},
	{"g14_6", "ESADout_CUDeclarant/Address/PostalCode"},
	{"g14_7", "ESADout_CUDeclarant/Address/Region"},
	{"g14_8", "ESADout_CUDeclarant/Address/City"},
	{"g14_9", "ESADout_CUDeclarant/Address/Street"},
	{"g14_10", "ESADout_CUDeclarant/Address/House"},

	{"g11_1", "ESADout_CUTradeCountry/CountryCode"},
	{"g15_1", "ESADout_CUDispatchCountry/CountryCode"},
	{"g15_2", "ESADout_CUDispatchCountry/CountryName"},
	{"g16_1", "ESADout_CUOriginCountry/CountryCode"},
	{"g16_2", "ESADout_CUOriginCountry/CountryName"},
	{"g17_1", "ESADout_CUDestinationCountry/CountryCode"},
	{"g17_2", "ESADout_CUDestinationCountry/CountryName"},

	{"g12_1", "ESADout_CUTotalCustomsCost/Amount"},
	{"g12_currency", "ESADout_CUTotalCustomsCost/CurrencyCode"},
	{"g12_logistics", "ESADout_CUTotalCustomsCost/LogisticsAmount"},
	{"g12_insurance", "ESADout_CUTotalCustomsCost/InsuranceAmount"},

	{"g18_1", "ESADout_CUBorderTransport/TransportMeansQuantity"},
	{"g18_2", "ESADout_CUBorderTransport/TransportIdentifier"},
	{"g18_3", "ESADout_CUBorderTransport/TransportCountryCode"},
	{"g19_1", "ESADout_CUContainer/ContainerIndicator"},
	{"g21_1", "ESADout_CUActiveBorderTransport/TransportIdentifier"},
	{"g25_1", "ESADout_CUBorderTransport/TransportModeCode"},
	{"g26_1", "ESADout_CUInlandTransport/TransportModeCode"},

	{"g20_1", "ESADout_CUDeliveryTerms/DeliveryTermsCode"},
	{"g20_2", "ESADout_CUDeliveryTerms/DeliveryPlace"},

	{"g22_1", "ESADout_CUInvoice/CurrencyCode"},
	{"g22_2", "ESADout_CUInvoice/Amount"},
	{"g23_1", "ESADout_CUCurrencyRate/Rate"},
	{"g23_2", "ESADout_CUCurrencyRate/CurrencyCode"},
	{"g24_1", "ESADout_CUDealNature/DealNatureCode"},
	{"g24_2", "ESADout_CUDealNature/DealFeatureCode"},

	{"g29_1", "ESADout_CUEntryCustomsOffice/Code"},
	{"g30_1", "ESADout_CUGoodsLocation/LocationKindCode"},
	{"g30_2", "ESADout_CUGoodsLocation/LocationFlag"},
	{"g30_3", "ESADout_CUGoodsLocation/CustomsOfficeCode"},
	{"g30_svh_name", "ESADout_CUGoodsLocation/TerminalName"},
	{"g30_license_number", "ESADout_CUGoodsLocation/LicenseNumber"},
	{"g30_license_date", "ESADout_CUGoodsLocation/LicenseDate"},
	{"g30_address", "ESADout_CUGoodsLocation/Address"},

	{"document_id", "ESADout_CUMainInfo/DocumentID"},
}

// perItemLists are the list fields realigned against the commodity code
// count before any element is written.
var perItemLists = []string{
	"g31_1_list", "g34_1_list", "g35_1_list", "g37_1_list", "g38_1_list",
	"g39_1_list", "g40_1_list", "g41_1_list", "g41_2_list", "g41_3_list",
	"g42_1_list", "g43_1_list", "g45_1_list", "g46_1_list",
}

// goodsLine mirrors one invoice line inside the goods_by_tnved grouping.
type goodsLine struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	Manufacturer string `json:"manufacturer"`
	Trademark    string `json:"goods_trademark"`
	Mark         string `json:"goods_mark"`
	Model        string `json:"goods_model"`
	Marking      string `json:"goods_marking"`
	Qty          string `json:"qty"`
	Currency     string `json:"currency"`
	InvoicedCost string `json:"invoiced_cost"`
}

// BuildDocument projects the field map into an ESADout_CU document.
func BuildDocument(fields model.FieldMap) (*etree.Document, error) {
	codes := stringList(fields["g33_1_list"])
	n := len(codes)
	if n == 0 {
		return nil, model.NewExportError("layout", "no commodity codes in field map", nil)
	}
	for _, code := range codes {
		if code == "" {
			return nil, model.NewExportError("layout", "blank commodity code in field map", nil)
		}
	}

	lists := make(map[string][]string, len(perItemLists))
	for _, key := range perItemLists {
		lists[key] = alignList(stringList(fields[key]), n)
	}

	goods, err := goodsLines(fields["goods_by_tnved"])
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ESADout_CU")

	for _, m := range headerMapping {
		if v := strings.TrimSpace(asString(fields[m.key])); v != "" {
			setPathText(root, m.path, v)
		}
	}

	for i, code := range codes {
		item := root.CreateElement("ESADout_CUGoodsItem")
		item.CreateElement("GoodsNumeric").SetText(fmt.Sprintf("%d", i+1))
		item.CreateElement("CommodityCode").SetText(code)

		for _, chunk := range splitChunks(lists["g31_1_list"][i]) {
			item.CreateElement("GoodsDescription").SetText(chunk)
		}

		setChildText(item, "OriginCountryCode", lists["g34_1_list"][i])
		setChildText(item, "GrossWeightQuantity", lists["g35_1_list"][i])
		setChildText(item, "NetWeightQuantity", lists["g38_1_list"][i])
		setChildText(item, "CustomsProcedure", lists["g37_1_list"][i])
		setChildText(item, "Quota", lists["g39_1_list"][i])
		setChildText(item, "PrecedingDocument", lists["g40_1_list"][i])

		if lists["g41_1_list"][i] != "" || lists["g41_3_list"][i] != "" {
			sup := item.CreateElement("SupplementaryQuantity")
			setChildText(sup, "Quantity", lists["g41_1_list"][i])
			setChildText(sup, "MeasureUnitName", lists["g41_2_list"][i])
			setChildText(sup, "MeasureUnitCode", lists["g41_3_list"][i])
		}

		setChildText(item, "InvoicedAmount", lists["g42_1_list"][i])
		setChildText(item, "ValuationMethodCode", lists["g43_1_list"][i])
		setChildText(item, "CustomsCost", lists["g45_1_list"][i])
		setChildText(item, "StatisticalCost", lists["g46_1_list"][i])

		for _, line := range goods[code] {
			sub := item.CreateElement("GoodsGroupInformation")
			setChildText(sub, "Manufacturer", line.Manufacturer)
			setChildText(sub, "TradeMark", line.Trademark)
			setChildText(sub, "Mark", line.Mark)
			setChildText(sub, "Model", line.Model)
			setChildText(sub, "Marking", line.Marking)
			setChildText(sub, "GoodsQuantity", line.Qty)
			setChildText(sub, "InvoicedCost", line.InvoicedCost)
			setChildText(sub, "CurrencyCode", line.Currency)
			for _, chunk := range splitChunks(strings.TrimSpace(line.OriginalName)) {
				sub.CreateElement("GoodsName").SetText(chunk)
			}
		}
	}

	appendPresentedDocuments(root, fields)
	return doc, nil
}

// Build serializes the projection with two-space indentation.
func Build(fields model.FieldMap) ([]byte, error) {
	doc, err := BuildDocument(fields)
	if err != nil {
		return nil, err
	}
	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, model.NewExportError("serialize", "cannot serialize document", err)
	}
	return out, nil
}

// appendPresentedDocuments zips the five graph 44 lists into one block
// per presented document.
func appendPresentedDocuments(root *etree.Element, fields model.FieldMap) {
	modes := stringList(fields["g44_1_list"])
	kinds := alignList(stringList(fields["g44_2_list"]), len(modes))
	names := alignList(stringList(fields["g44_3_list"]), len(modes))
	numbers := alignList(stringList(fields["g44_4_list"]), len(modes))
	dates := alignList(stringList(fields["g44_5_list"]), len(modes))

	for i, mode := range modes {
		if strings.TrimSpace(mode) == "" {
			continue
		}
		elem := root.CreateElement("ESADout_CUPresentedDocument")
		elem.CreateElement("DocumentModeCode").SetText(strings.TrimSpace(mode))
		setChildText(elem, "DocumentKindCode", kinds[i])
		for _, chunk := range splitChunks(names[i]) {
			elem.CreateElement("DocumentName").SetText(chunk)
		}
		setChildText(elem, "DocumentNumber", numbers[i])
		setChildText(elem, "DocumentDate", dates[i])
	}
}

// goodsLines decodes the grouping whatever concrete form it arrived in,
// the assembler's typed slices or a JSON round-trip of them.
func goodsLines(v any) (map[string][]goodsLine, error) {
	if v == nil {
		return map[string][]goodsLine{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, model.NewExportError("goods", "cannot read goods grouping", err)
	}
	out := map[string][]goodsLine{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, model.NewExportError("goods", "malformed goods grouping", err)
	}
	return out, nil
}

// setPathText creates the slash-separated path under root, reusing
// intermediate elements already created by earlier mappings.
func setPathText(root *etree.Element, path, text string) {
	cur := root
	parts := strings.Split(path, "/")
	for _, part := range parts[:len(parts)-1] {
		next := cur.SelectElement(part)
		if next == nil {
			next = cur.CreateElement(part)
		}
		cur = next
	}
	cur.CreateElement(parts[len(parts)-1]).SetText(text)
}

func setChildText(parent *etree.Element, tag, text string) {
	if text = strings.TrimSpace(text); text != "" {
		parent.CreateElement(tag).SetText(text)
	}
}

// splitChunks cuts text into rune-safe pieces of at most maxChunk
// characters.
func splitChunks(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var out []string
	for len(runes) > maxChunk {
		out = append(out, string(runes[:maxChunk]))
		runes = runes[maxChunk:]
	}
	return append(out, string(runes))
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = asString(item)
		}
		return out
	}
	return nil
}

func alignList(lst []string, n int) []string {
	out := make([]string, 0, n)
	for _, v := range lst {
		if len(out) == n {
			break
		}
		out = append(out, strings.TrimSpace(v))
	}
	for len(out) < n {
		out = append(out, "")
	}
	return out
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}
