// Command blinkenmatrixd is the firmware entry point: it loads
// configuration, wires the GPIO/ADC/strip hardware to the animation
// engine and protocol dispatcher, and runs the main loop until
// terminated.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fkcurrie/blinkenmatrix/internal/config"
	"github.com/fkcurrie/blinkenmatrix/internal/frame"
	"github.com/fkcurrie/blinkenmatrix/internal/iohw"
	"github.com/fkcurrie/blinkenmatrix/internal/loop"
	"github.com/fkcurrie/blinkenmatrix/internal/matrix"
	"github.com/fkcurrie/blinkenmatrix/internal/player"
	"github.com/fkcurrie/blinkenmatrix/internal/pool"
	"github.com/fkcurrie/blinkenmatrix/internal/power"
	"github.com/fkcurrie/blinkenmatrix/internal/prefs"
	"github.com/fkcurrie/blinkenmatrix/internal/protocol"
	"github.com/fkcurrie/blinkenmatrix/internal/serial"
	"github.com/fkcurrie/blinkenmatrix/internal/strip"
	"github.com/fkcurrie/blinkenmatrix/internal/transport"
	"github.com/fkcurrie/blinkenmatrix/internal/wireless"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("No config at %s (%v), using defaults", *configPath, err)
		cfg = config.DefaultConfig()
	}

	prefsStore, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		log.Fatalf("Failed to open preferences store: %v", err)
	}

	bootTime := time.Now()
	nowFn := func() uint32 { return uint32(time.Since(bootTime).Milliseconds()) }

	led, err := strip.Open(18, frame.Width*frame.Height)
	if err != nil {
		log.Fatalf("Failed to open LED strip: %v", err)
	}
	defer led.Close()

	rotation := matrix.Rotation0
	if r, ok := prefsStore.Rotation(); ok {
		rotation = matrix.Rotation(r)
	}
	matrixDrv := matrix.New(led, rotation)
	if cc, ok := prefsStore.ColorCorrection(); ok {
		matrixDrv.SetColorCorrection([3]byte{byte(cc >> 16), byte(cc >> 8), byte(cc)})
	}

	limiter := power.NewLimiter(matrixDrv)
	if dim, ok := prefsStore.Dim(); ok {
		limiter.SetDim(byte(dim))
	}

	rails, err := iohw.NewRails(cfg.GPIO.Chip, cfg.GPIO.PowerRailA, cfg.GPIO.PowerRailB)
	if err != nil {
		log.Fatalf("Failed to request power rail lines: %v", err)
	}
	defer rails.Close()

	statusLED, err := iohw.NewStatusLED(cfg.GPIO.Chip, cfg.GPIO.StatusLED)
	if err != nil {
		log.Fatalf("Failed to request status LED line: %v", err)
	}
	defer statusLED.Close()

	cc1, err := iohw.NewADCPin(uintptr(cfg.ADC.BaseAddr), uintptr(cfg.ADC.Size), uintptr(cfg.ADC.CC1Offset), cfg.ADC.VRef, cfg.ADC.FullScale)
	if err != nil {
		log.Fatalf("Failed to map CC1 ADC pin: %v", err)
	}
	defer cc1.Close()

	cc2, err := iohw.NewADCPin(uintptr(cfg.ADC.BaseAddr), uintptr(cfg.ADC.Size), uintptr(cfg.ADC.CC2Offset), cfg.ADC.VRef, cfg.ADC.FullScale)
	if err != nil {
		log.Fatalf("Failed to map CC2 ADC pin: %v", err)
	}
	defer cc2.Close()

	pairingButtons, err := iohw.NewTouchGroup(cfg.GPIO.Chip, cfg.GPIO.PairingButtons, nowFn)
	if err != nil {
		log.Fatalf("Failed to request pairing touch lines: %v", err)
	}
	defer pairingButtons.Close()

	powerCtrl := power.New(cc1, cc2, nowFn, limiter, rails, statusLED)
	if override, ok := prefsStore.PowerOverride(); ok {
		powerCtrl.SetOverride(power.Budget(override))
	}

	animPool := pool.New(cfg.Pool.MaxAnimations, cfg.Pool.MaxFrames)
	pl := player.New(animPool, nowFn)

	dispatcher := protocol.New(animPool, matrixDrv, limiter, powerCtrl, prefsStore, nowFn, log.Default())

	wiredPort, err := serial.Open(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		log.Fatalf("Failed to open wired serial port: %v", err)
	}
	defer wiredPort.Close()

	wirelessTransport := wireless.New(log.Default())
	mux := http.NewServeMux()
	mux.Handle("/", wirelessTransport)
	httpSrv := &http.Server{Addr: cfg.Wireless.ListenAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("wireless: server stopped: %v", err)
		}
	}()

	transportMux := transport.New(wiredPort, wirelessTransport, wirelessTransport.Active)

	mainLoop := loop.New(pl, matrixDrv, dispatcher, transportMux, powerCtrl, pairingButtons, wirelessTransport)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	if err := mainLoop.Run(ctx); err != nil {
		log.Fatalf("Main loop exited: %v", err)
	}

	httpSrv.Close()
}
