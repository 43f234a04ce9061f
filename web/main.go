package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/df07/go-pathtracer/web/server"
)

func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	grpcPort := flag.Int("grpc-port", 8081, "Port for the gRPC health service (0 disables it)")
	allowOrigin := flag.String("allow-origin", "", "Comma-separated extra origins allowed to open render sockets")
	flag.Parse()

	var origins []string
	for _, origin := range strings.Split(*allowOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	webServer := server.NewServer(*port, origins...)
	defer webServer.Shutdown()

	if *grpcPort != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *grpcPort))
		if err != nil {
			log.Printf("Error listening for gRPC: %v", err)
			os.Exit(1)
		}
		go func() {
			if err := webServer.ServeGRPC(lis); err != nil {
				log.Printf("gRPC server stopped: %v", err)
			}
		}()
	}

	log.Printf("Path Tracer Web Server")
	log.Printf("Visit http://localhost:%d to start rendering", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
