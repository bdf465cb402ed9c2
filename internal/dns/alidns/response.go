package alidns

import (
	"strconv"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
)

// stringField returns data[key] as a string, or an UnexpectedResponseError
// naming the action when the key is absent or not a string.
func stringField(action string, data map[string]any, key string) (string, error) {
	v, ok := data[key].(string)
	if !ok {
		return "", &dns.UnexpectedResponseError{Action: action, Key: key}
	}
	return v, nil
}

// recordList extracts DomainRecords.Record from a DescribeDomainRecords response.
func recordList(data Response) ([]map[string]any, error) {
	const action = "DescribeDomainRecords"

	container, ok := data["DomainRecords"].(map[string]any)
	if !ok {
		return nil, &dns.UnexpectedResponseError{Action: action, Key: "DomainRecords"}
	}
	raw, ok := container["Record"].([]any)
	if !ok {
		return nil, &dns.UnexpectedResponseError{Action: action, Key: "DomainRecords.Record"}
	}

	rows := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, &dns.UnexpectedResponseError{Action: action, Key: "DomainRecords.Record[]"}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// toRecord maps one Alidns record row to a dns.Record.
func toRecord(row map[string]any) (dns.Record, error) {
	const action = "DescribeDomainRecords"

	id, err := stringField(action, row, "RecordId")
	if err != nil {
		return dns.Record{}, err
	}
	rr, err := stringField(action, row, "RR")
	if err != nil {
		return dns.Record{}, err
	}
	line, err := stringField(action, row, "Line")
	if err != nil {
		return dns.Record{}, err
	}
	typ, err := stringField(action, row, "Type")
	if err != nil {
		return dns.Record{}, err
	}
	value, err := stringField(action, row, "Value")
	if err != nil {
		return dns.Record{}, err
	}
	domainName, _ := row["DomainName"].(string)

	return dns.Record{
		ID:         id,
		HostRecord: rr,
		RootDomain: domainName,
		Line:       line,
		Type:       typ,
		Value:      value,
		TTL:        intField(row["TTL"]),
	}, nil
}

func intField(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}
