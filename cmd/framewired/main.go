package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/framewire/framewire/bus"
	"github.com/framewire/framewire/server"
	"github.com/framewire/framewire/vec"
)

const FramewiredVersion = "0.0.1"

// buildDemoConfig assembles a single node/pipe/window/channel hierarchy
// with one wall view and one compound rendering the full channel.
func buildDemoConfig(localNode *bus.LocalNode, config *server.Config) (*server.Node, error) {
	node := server.NewNode()
	pipe := server.NewPipe()
	window := server.NewWindow()
	channel := server.NewChannel()

	node.AddPipe(pipe)
	pipe.AddWindow(window)
	pvp := server.PixelViewport{W: 1280, H: 800}
	window.SetPixelViewport(pvp)
	window.AddChannel(channel)
	channel.SetPixelViewport(pvp)

	view := server.NewView()
	view.SetWall(server.Wall{
		BottomLeft:  vec.V3(-0.8, -0.5, -1),
		BottomRight: vec.V3(0.8, -0.5, -1),
		TopLeft:     vec.V3(-0.8, 0.5, -1),
	})
	view.SetEyeBase(0.05)
	channel.SetView(view)
	config.AddView(view)

	compound := server.NewCompound()
	compound.Channel = channel
	config.Tree().AddRoot(compound)
	config.AddNode(node)

	for _, object := range []bus.Object{node, pipe, window, channel, view} {
		if _, err := localNode.Register(object); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// runFrames drives the frame loop: wait for the first render client,
// bind it to the demo node, then start and finish frames until cancel.
func runFrames(
	ctx context.Context,
	localNode *bus.LocalNode,
	config *server.Config,
	node *server.Node,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if node.NetNodeID() == (bus.Id{}) {
			peerIds := localNode.PeerIDs()
			if len(peerIds) == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(250 * time.Millisecond):
				}
				continue
			}
			node.SetNetNodeID(peerIds[0])
			glog.Infof("[main]render node bound to %s\n", peerIds[0])
		}

		frameNumber, err := config.StartFrame(bus.NewId())
		if err != nil {
			glog.Errorf("[main]start frame %d = %s\n", frameNumber, err)
			return
		}
		config.FinishFrame(ctx)
	}
}

func main() {
	usage := `Framewire rendering server.

Serves one rendering session: render clients connect over websocket,
authenticate with a session JWT and receive per-frame task packets for
a demonstration configuration with a single node, pipe, window and
channel.

Usage:
    framewired [--listen=<addr>] [--session=<name>] [--secret=<secret>]
        [--frame_timeout=<seconds>] [-v...]

Options:
    -h --help                   Show this screen.
    --version                   Show version.
    --listen=<addr>             Listen address [default: 127.0.0.1:8090].
    --session=<name>            Session name [default: default].
    --secret=<secret>           Shared JWT secret [default: framewire].
    --frame_timeout=<seconds>   Abandon a frame after this long [default: 10].
    -v                          Increase log verbosity.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], FramewiredVersion)
	if err != nil {
		panic(err)
	}

	if verbosity, _ := opts.Int("-v"); verbosity > 0 {
		flag.Set("v", "2")
	}
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	listen, _ := opts.String("--listen")
	session, _ := opts.String("--session")
	secret, _ := opts.String("--secret")
	frameTimeout, _ := opts.Int("--frame_timeout")

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localNode := bus.NewLocalNodeWithDefaults(cancelCtx)
	defer localNode.Close()

	settings := server.DefaultConfigSettings()
	settings.FrameTimeout = time.Duration(frameTimeout) * time.Second
	config := server.NewConfig(localNode, settings)
	config.SetName(session)
	if _, err := localNode.Register(config); err != nil {
		glog.Errorf("[main]register config = %s\n", err)
		os.Exit(1)
	}

	node, err := buildDemoConfig(localNode, config)
	if err != nil {
		glog.Errorf("[main]build config = %s\n", err)
		os.Exit(1)
	}

	localNode.SetHandler(func(message *bus.Message) {
		packet, err := server.DecodeTaskPacket(message)
		if err != nil {
			glog.Warningf("[main]drop bad packet = %s\n", err)
			return
		}
		if packet.Type == server.PacketNodeFrameDrawFinish {
			config.FrameFinished(packet.ObjectID, packet.FrameNumber)
		}
	})

	listener := bus.NewWsListenerWithDefaults(cancelCtx, localNode, []byte(secret))
	defer listener.Close()

	httpServer := &http.Server{
		Addr:    listen,
		Handler: listener,
	}
	go func() {
		glog.Infof("[main]session %s listening on %s\n", session, listen)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			glog.Errorf("[main]listen = %s\n", err)
			cancel()
		}
	}()

	go runFrames(cancelCtx, localNode, config, node)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-cancelCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
