package session

import "fmt"

// Sourcetable renders the NTRIP sourcetable block advertising the single
// proxy mount point. location defaults to "NTRIP Service".
func Sourcetable(mount, location string) string {
	if location == "" {
		location = "NTRIP Service"
	}
	return "SOURCETABLE 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		fmt.Sprintf("STR;%s;%s;RTCM 3;;2;GPS;NTRIP;USA;0;0;1;0;none;none;B;N;0;\r\n", mount, location) +
		"ENDSOURCETABLE\r\n"
}
