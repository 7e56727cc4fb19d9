/*
File Name:  Backend.go

The Backend ties every component together into one running instance,
adapted from the teacher's Peernet.go: Init loads configuration and
constructs every subsystem, returning an ExitX status on fatal failure;
Connect then starts the background goroutines (link reader, link
peer-event loop, peer-id rotation timer, and a maintenance sweep that
expires stale store-and-forward entries) the way the teacher's Connect
starts its bootstrap/network goroutines.
*/

package core

import (
	"context"
	"sync"
	"time"

	"github.com/bitchat-go/core/channelkey"
	"github.com/bitchat-go/core/fragment"
	"github.com/bitchat-go/core/identity"
	"github.com/bitchat-go/core/link"
	"github.com/bitchat-go/core/noise"
	"github.com/bitchat-go/core/relay"
	"github.com/bitchat-go/core/secretstore"
)

// Backend represents a running instance of the protocol core.
type Backend struct {
	ConfigFilename string
	Config         Config

	Identity *identity.Identity
	PeerID   [8]byte

	Log *Log

	secrets       secretstore.SecretStore
	sessions      *noise.Table
	channels      *channelkey.Store
	dedup         *relay.DedupSet
	storeForward  *relay.StoreAndForward
	reassembly    *fragment.ReassemblyTable
	rateLimiter   *identity.RateLimiter
	favorites     *identity.FavoritesList
	events        *eventBus
	delivery      map[[16]byte]*relay.DeliveryStatus
	deliveryMu    sync.Mutex

	peersMu    sync.RWMutex
	peers      map[[8]byte]*peerInfo
	linkToPeer map[string][8]byte

	retiredMu  sync.Mutex
	retired    map[[8]byte]time.Time

	membersMu sync.Mutex
	members   map[string]map[string]struct{} // channel -> member fingerprints

	link link.Link

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Init constructs a Backend: loads configuration, the local identity (via
// SecretStore), and every subsystem's in-memory state. Returns an ExitX
// status; anything other than ExitSuccess indicates a fatal failure.
func Init(configFilename string, secrets secretstore.SecretStore) (backend *Backend, status int, err error) {
	backend = &Backend{
		ConfigFilename: configFilename,
		secrets:        secrets,
		sessions:       noise.NewTable(),
		channels:       channelkey.NewStore(),
		dedup:          relay.NewDedupSet(time.Minute),
		storeForward:   relay.NewStoreAndForward(),
		reassembly:     fragment.NewReassemblyTable(),
		rateLimiter:    identity.NewRateLimiter(),
		favorites:      identity.NewFavoritesList(),
		events:         newEventBus(),
		delivery:       make(map[[16]byte]*relay.DeliveryStatus),
		peers:          make(map[[8]byte]*peerInfo),
		linkToPeer:     make(map[string][8]byte),
		retired:        make(map[[8]byte]time.Time),
		members:        make(map[string]map[string]struct{}),
		Log:            newLog(),
	}

	if status, err = LoadConfig(configFilename); status != ExitSuccess {
		return nil, status, err
	}
	backend.Config = config

	backend.Identity, err = identity.LoadOrCreate(secrets)
	if err != nil {
		return nil, ExitErrorIdentityInit, err
	}

	for _, fp := range backend.Config.Favorites {
		backend.favorites.ToggleFavorite(fp)
	}
	for _, fp := range backend.Config.Blocked {
		backend.favorites.Block(fp)
	}

	peerID, err := identity.NewPeerID()
	if err != nil {
		return nil, ExitErrorIdentityInit, err
	}
	backend.PeerID = peerID

	return backend, ExitSuccess, nil
}

// Connect attaches a transport Link and starts the background tasks:
// the link reader, the link peer-event loop, the peer-id rotation timer,
// and the maintenance sweep that expires stale store-and-forward entries.
func (backend *Backend) Connect(l link.Link) {
	backend.link = l

	ctx, cancel := context.WithCancel(context.Background())
	backend.cancel = cancel

	backend.wg.Add(4)
	go backend.readLoop(ctx)
	go backend.peerEventLoop(ctx)
	go backend.rotationTimer(ctx)
	go backend.maintenanceSweep(ctx)
}

// Shutdown cancels every background task and waits for them to exit,
// honoring the "cancellation within one poll" contract of §5.
func (backend *Backend) Shutdown() {
	if backend.cancel != nil {
		backend.cancel()
	}
	backend.wg.Wait()
	backend.dedup.Stop()
	if backend.link != nil {
		backend.link.Close()
	}
}

func (backend *Backend) rotationTimer(ctx context.Context) {
	defer backend.wg.Done()
	for {
		delay := identity.NextRotationDelay()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			backend.rotatePeerID()
		}
	}
}

func (backend *Backend) rotatePeerID() {
	oldID := backend.PeerID
	newID, err := identity.NewPeerID()
	if err != nil {
		backend.Log.Printf("rotatePeerID", "generate peer id: %v", err)
		return
	}
	backend.PeerID = newID

	backend.retiredMu.Lock()
	backend.retired[oldID] = time.Now().Add(identity.OldPeerIDGracePeriod)
	backend.retiredMu.Unlock()

	ann := identity.Announce(backend.Identity, newID, oldID, true, backend.Config.Nickname, nowMillis())
	backend.broadcastAnnouncement(ann)

	go func(id [8]byte) {
		time.Sleep(identity.OldPeerIDGracePeriod)
		backend.retiredMu.Lock()
		delete(backend.retired, id)
		backend.retiredMu.Unlock()
	}(oldID)
}

// isOwnPeerID reports whether peerID addresses us, either as our current
// ephemeral peer-id or as one retired within the rotation grace period
// (§5: "old retained for a grace period of 60s so in-flight messages still
// resolve").
func (backend *Backend) isOwnPeerID(peerID [8]byte) bool {
	if identity.PeerIDEqual(peerID, backend.PeerID) {
		return true
	}
	backend.retiredMu.Lock()
	expiry, ok := backend.retired[peerID]
	backend.retiredMu.Unlock()
	return ok && time.Now().Before(expiry)
}

func (backend *Backend) maintenanceSweep(ctx context.Context) {
	defer backend.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			backend.storeForward.ExpireStale()
		}
	}
}

// nowMillis is the one place wall-clock time enters the wire format, kept
// narrow so every timestamp on the wire is u64 milliseconds (§9 design
// note on Date-as-seconds).
func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
