package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dialhaven/recall/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).NotTo(BeNil())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Version).To(Equal(defaults.Version))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Storage.Provider).To(Equal(defaults.Storage.Provider))
			Expect(cfg.Buffer.Capacity).To(Equal(defaults.Buffer.Capacity))
			Expect(cfg.Buffer.Watermark).To(Equal(defaults.Buffer.Watermark))
			Expect(cfg.Consolidate.Slice).To(Equal(defaults.Consolidate.Slice))
			Expect(cfg.Extract.Provider).To(Equal(defaults.Extract.Provider))
			Expect(cfg.Events.Provider).To(Equal(defaults.Events.Provider))
			Expect(cfg.VectorStore.Provider).To(Equal(defaults.VectorStore.Provider))
			Expect(cfg.Embedding.Provider).To(Equal(defaults.Embedding.Provider))
		})

		It("loads values from an existing config file", func() {
			content := `version = 0

[api]
listen = ":9090"

[storage]
provider = "postgres"
postgres_url = "postgres://localhost/recall"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":9090"))
			Expect(cfg.Storage.Provider).To(Equal("postgres"))
			Expect(cfg.Storage.PostgresURL).To(Equal("postgres://localhost/recall"))
		})

		It("fills unset fields with defaults", func() {
			content := `[api]
listen = ":9090"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.API.Listen).To(Equal(":9090"))
			Expect(cfg.Buffer.Capacity).To(Equal(defaults.Buffer.Capacity))
			Expect(cfg.Consolidate.SweepSpec).To(Equal(defaults.Consolidate.SweepSpec))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips the configuration", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.API.Listen = ":7070"
			cfg.Auth.Tenants = []string{"tenant-a", "tenant-b"}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.API.Listen).To(Equal(":7070"))
			Expect(loaded.Auth.Tenants).To(Equal([]string{"tenant-a", "tenant-b"}))
		})

		It("rejects a nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(HaveOccurred())
		})
	})

	Describe("ParseConfigTOML", func() {
		It("rejects an unsupported version", func() {
			_, err := config.ParseConfigTOML([]byte("version = 99\n"))
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed TOML", func() {
			_, err := config.ParseConfigTOML([]byte("this is not toml ["))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("config keys", func() {
		It("accepts every listed key", func() {
			for _, key := range config.ValidConfigKeys() {
				Expect(config.IsValidConfigKey(key)).To(BeTrue(), "key %q", key)
			}
		})

		It("rejects unknown keys", func() {
			Expect(config.IsValidConfigKey("nope.nothing")).To(BeFalse())
		})

		It("sets and gets a string value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("api.listen", ":6060")).To(Succeed())

			value, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(":6060"))
		})

		It("sets and gets an integer value", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("buffer.capacity", "750")).To(Succeed())

			value, err := c.GetConfigValue("buffer.capacity")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("750"))
		})

		It("rejects a non-numeric value for an integer key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("buffer.capacity", "many")).To(HaveOccurred())
		})

		It("sets and gets the tenant allow list as CSV", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("auth.tenants", "tenant-a,tenant-b")).To(Succeed())

			value, err := c.GetConfigValue("auth.tenants")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("tenant-a,tenant-b"))
		})

		It("errors on setting an unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SetConfigValue("nope.nothing", "x")).To(HaveOccurred())
		})
	})
})
