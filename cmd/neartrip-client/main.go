// Rover client is a minimal NTRIP rover simulator for testing neartrip.
//
// It connects to a caster, either fetches the sourcetable or subscribes
// to a mount point, then repeats a GPGGA position report on an interval
// while dumping whatever correction bytes come back.
//
// Usage:
//
//	./neartrip-client -addr localhost:2101 -mount NEARTRIP -lat 37.3875 -lon -122.0575
//
// Flags:
//
//	-addr: Caster host:port (default: localhost:2101)
//	-mount: Mount point to subscribe to; empty requests the sourcetable
//	-lat, -lon: Simulated rover position in decimal degrees
//	-interval: Seconds between GPGGA reports (default: 5)
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:2101", "Caster host:port")
	mount := flag.String("mount", "", "Mount point (empty: fetch sourcetable)")
	lat := flag.Float64("lat", 37.3875, "Rover latitude, decimal degrees")
	lon := flag.Float64("lon", -122.0575, "Rover longitude, decimal degrees")
	interval := flag.Int("interval", 5, "Seconds between position reports")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 10*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	if *mount == "" {
		fmt.Fprintf(conn, "GET / HTTP/1.0\r\n\r\n")
		dump(conn)
		return
	}

	log.Printf("Subscribing to /%s", *mount)
	fmt.Fprintf(conn, "GET /%s HTTP/1.0\r\nUser-Agent: NTRIP neartrip-client\r\n\r\n", *mount)

	go func() {
		sentence := gga(*lat, *lon)
		for {
			if _, err := conn.Write([]byte(sentence + "\r\n")); err != nil {
				log.Printf("Position write failed: %v", err)
				return
			}
			log.Printf("sent %s", sentence)
			time.Sleep(time.Duration(*interval) * time.Second)
		}
	}()

	dump(conn)
}

// dump copies everything the caster sends to stdout until EOF.
func dump(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
	}
}

// gga builds a GPGGA sentence for the given position with a valid
// checksum.
func gga(lat, lon float64) string {
	latHemi, lonHemi := "N", "E"
	if lat < 0 {
		latHemi = "S"
		lat = -lat
	}
	if lon < 0 {
		lonHemi = "W"
		lon = -lon
	}

	latDeg := math.Floor(lat)
	lonDeg := math.Floor(lon)
	latMin := (lat - latDeg) * 60
	lonMin := (lon - lonDeg) * 60

	now := time.Now().UTC()
	body := fmt.Sprintf("GPGGA,%02d%02d%02d,%02.0f%07.4f,%s,%03.0f%07.4f,%s,1,08,0.9,10.0,M,0.0,M,,",
		now.Hour(), now.Minute(), now.Second(),
		latDeg, latMin, latHemi, lonDeg, lonMin, lonHemi)

	sum := byte(0)
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}
