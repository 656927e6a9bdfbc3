// Package api is the REST client for the vendor's local market-data terminal.
//
// Endpoints (v2):
//   - Historical: /hist/{option,stock,index}/{trade,quote,ohlc,eod,open_interest,price}
//   - Universe:   /list/roots/{class}, /list/expirations, /list/strikes, /list/contracts/option/{kind}
//
// Every response carries a header and a row array:
//
//	{"header": {"format": ["ms_of_day", "bid", ...], "next_page": "..."}, "response": [[...], ...]}
//
// Large responses are split across pages linked by header.next_page. Requests
// covering long date spans are split into sub-ranges and fetched in parallel
// (see Execute).
package api
